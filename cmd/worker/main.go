package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/config"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/db"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/httpapi/handlers"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/identity"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/router"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/store/rabbitmq"
)

type jobMsg struct {
	JobID string `json:"job_id"`
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	reg := handlers.NewProviderRegistry(cfg)
	orch := router.NewOrchestrator(gdb, reg)
	jobs := router.NewJobStore(gdb)
	resolver := identity.NewResolver(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				var m jobMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, orch, jobs, resolver, m.JobID); err != nil {
					log.Printf("worker=%d job %s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			deliveries <- d
		}
	}
}

func handleJob(ctx context.Context, orch *router.Orchestrator, jobs *router.JobStore, resolver *identity.Resolver, jobID string) error {
	claimed, err := jobs.MarkRunning(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		// Redelivery of a job another worker already took.
		log.Printf("job %s already claimed, skipping", jobID)
		return nil
	}

	j, err := jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	req, err := jobs.DecodePayload(j)
	if err != nil {
		_ = jobs.MarkFailed(ctx, jobID, err.Error())
		return err
	}

	user, err := jobs.UserByID(ctx, j.UserID)
	if err != nil {
		_ = jobs.MarkFailed(ctx, jobID, err.Error())
		return err
	}

	sess, err := resolver.ResolveSession(ctx, user.ID, req.SessionID)
	if err != nil {
		_ = jobs.MarkFailed(ctx, jobID, err.Error())
		return err
	}

	final, _, err := orch.CallProviders(ctx, req, user, sess)
	if err != nil {
		_ = jobs.MarkFailed(ctx, jobID, err.Error())
		return err
	}

	return jobs.MarkSucceeded(ctx, jobID, final.RequestID, final.Content)
}
