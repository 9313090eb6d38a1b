package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/common"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/series"
)

// Only GOLD is served for now; adding assets means dropping a JSON file into
// the data dir and extending this check.
func assetOK(asset string) bool {
	return strings.EqualFold(asset, "GOLD")
}

// GetSeries returns the raw series plus optional indicators
// (?include_indicators=sma_50,sma_200).
func (h *Handler) GetSeries(c *gin.Context) {
	asset := c.Query("asset")
	if !assetOK(asset) {
		common.Fail(c, http.StatusBadRequest, 40010, "only GOLD is supported")
		return
	}

	points, meta, err := h.Series.Load("gold")
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50010, err.Error())
		return
	}

	resp := gin.H{"asset": "GOLD", "series": points, "meta": meta}

	if raw := c.Query("include_indicators"); raw != "" {
		want := map[string]bool{}
		for _, w := range strings.Split(raw, ",") {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				want[w] = true
			}
		}
		closes := series.Values(points)
		inds := gin.H{}
		if want["sma_50"] {
			inds["sma_50"] = series.SMA(closes, 50)
		}
		if want["sma_200"] {
			inds["sma_200"] = series.SMA(closes, 200)
		}
		if len(inds) > 0 {
			resp["indicators"] = inds
		}
	}

	common.OK(c, resp)
}

type analyzeRequest struct {
	Values    []float64 `json:"values" binding:"required"`
	Window    int       `json:"window"`
	Threshold float64   `json:"threshold"`
}

func (r *analyzeRequest) defaults() error {
	if r.Window == 0 {
		r.Window = 30
	}
	if r.Threshold == 0 {
		r.Threshold = 3.5
	}
	if r.Window < 1 {
		return errInvalidWindow
	}
	if r.Threshold <= 0 {
		return errInvalidThreshold
	}
	return nil
}

var (
	errInvalidWindow    = &paramError{"window must be >= 1"}
	errInvalidThreshold = &paramError{"threshold must be > 0"}
)

type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

// Analyze scores posted values with the robust z-score detector.
func (h *Handler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}
	if err := req.defaults(); err != nil {
		common.Fail(c, http.StatusBadRequest, 40011, err.Error())
		return
	}
	common.OK(c, series.RobustZScore(req.Values, req.Window, req.Threshold))
}

// AnomalyForAsset runs the detector over a server-side series.
func (h *Handler) AnomalyForAsset(c *gin.Context) {
	asset := c.Query("asset")
	if !assetOK(asset) {
		common.Fail(c, http.StatusBadRequest, 40010, "only GOLD is supported")
		return
	}

	window := 30
	if v := c.Query("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			common.Fail(c, http.StatusBadRequest, 40011, errInvalidWindow.Error())
			return
		}
		window = n
	}
	threshold := 3.5
	if v := c.Query("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			common.Fail(c, http.StatusBadRequest, 40011, errInvalidThreshold.Error())
			return
		}
		threshold = f
	}

	points, _, err := h.Series.Load("gold")
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50010, err.Error())
		return
	}

	out := series.RobustZScore(series.Values(points), window, threshold)
	common.OK(c, gin.H{
		"window":    window,
		"threshold": threshold,
		"scores":    out.Scores,
		"flags":     out.Anomalies,
	})
}

// AnomalyForPayload runs the detector over posted values.
func (h *Handler) AnomalyForPayload(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}
	if err := req.defaults(); err != nil {
		common.Fail(c, http.StatusBadRequest, 40011, err.Error())
		return
	}
	out := series.RobustZScore(req.Values, req.Window, req.Threshold)
	common.OK(c, gin.H{
		"window":    req.Window,
		"threshold": req.Threshold,
		"scores":    out.Scores,
		"flags":     out.Anomalies,
	})
}
