package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.UserIdentity{},
		&models.Session{},
		&models.RouterRequest{},
		&models.Invocation{},
		&models.RouterJob{},
		&models.LocalCredential{},
	)
}
