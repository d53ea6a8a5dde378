package http

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const statusError = "error"

// shortenRequest represents the structure for a request to shorten a URL.
type shortenRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

// shortenResponse represents the structure for a response containing the short URL.
type shortenResponse struct {
	ShortURL string `json:"shortUrl"`
	ShortID  string `json:"shortId"`
}

// linkStatsResponse represents the analytics of a single link.
type linkStatsResponse struct {
	ShortID      string     `json:"shortId"`
	OriginalURL  string     `json:"originalUrl"`
	Clicks       int64      `json:"clicks"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastAccessed *time.Time `json:"lastAccessed"`
}

func toLinkStatsResponse(link *entity.ShortLink) linkStatsResponse {
	return linkStatsResponse{
		ShortID:      link.ShortID,
		OriginalURL:  link.OriginalURL,
		Clicks:       link.Clicks,
		CreatedAt:    link.CreatedAt,
		LastAccessed: link.LastAccessed,
	}
}

type topLinkResponse struct {
	ShortID      string     `json:"shortId"`
	ShortURL     string     `json:"shortUrl"`
	OriginalURL  string     `json:"originalUrl"`
	Clicks       int64      `json:"clicks"`
	LastAccessed *time.Time `json:"lastAccessed"`
}

type databaseMetrics struct {
	TotalLinks    int64   `json:"totalUrls"`
	RecentLinks   int64   `json:"recentUrls24h"`
	TotalClicks   int64   `json:"totalClicks"`
	AverageClicks float64 `json:"averageClicksPerUrl"`
}

type cacheMetrics struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hitRate"`
	Degraded bool    `json:"degraded"`
}

// memoryMetrics holds process memory in megabytes.
type memoryMetrics struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"totalAlloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"numGc"`
}

// metricsResponse represents the aggregated service metrics.
type metricsResponse struct {
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Database  databaseMetrics   `json:"database"`
	TopLinks  []topLinkResponse `json:"topUrls"`
	Cache     cacheMetrics      `json:"cache"`
	Memory    memoryMetrics     `json:"memory"`
}

const megabyte = 1024 * 1024

func toMetricsResponse(m *entity.Metrics, shortURL func(string) string) metricsResponse {
	top := make([]topLinkResponse, 0, len(m.TopLinks))
	for _, link := range m.TopLinks {
		top = append(top, topLinkResponse{
			ShortID:      link.ShortID,
			ShortURL:     shortURL(link.ShortID),
			OriginalURL:  link.OriginalURL,
			Clicks:       link.Clicks,
			LastAccessed: link.LastAccessed,
		})
	}

	return metricsResponse{
		Timestamp: m.CollectedAt,
		Uptime:    m.Uptime.Truncate(time.Second).String(),
		Database: databaseMetrics{
			TotalLinks:    m.TotalLinks,
			RecentLinks:   m.RecentLinks,
			TotalClicks:   m.TotalClicks,
			AverageClicks: m.AverageClicks,
		},
		TopLinks: top,
		Cache: cacheMetrics{
			Hits:     m.Cache.Hits,
			Misses:   m.Cache.Misses,
			HitRate:  m.Cache.HitRate(),
			Degraded: m.Cache.Degraded,
		},
		Memory: memoryMetrics{
			Alloc:      m.Memory.Alloc / megabyte,
			TotalAlloc: m.Memory.TotalAlloc / megabyte,
			Sys:        m.Memory.Sys / megabyte,
			NumGC:      m.Memory.NumGC,
		},
	}
}

type servicesHealth struct {
	Store  string `json:"store"`
	Cache  string `json:"cache"`
	Server string `json:"server"`
}

// healthResponse represents the result of a dependency check.
type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Uptime    float64        `json:"uptime"`
	Services  servicesHealth `json:"services"`
}

func toHealthResponse(h entity.Health) healthResponse {
	return healthResponse{
		Status:    h.Status,
		Timestamp: h.CheckedAt,
		Uptime:    h.Uptime.Seconds(),
		Services: servicesHealth{
			Store:  h.Store,
			Cache:  h.Cache,
			Server: h.Server,
		},
	}
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	invalidURLResponse = errorResponse{
		Status:  statusError,
		Message: "invalid url",
	}

	linkNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "link not found",
	}

	tooManyRequestsResponse = errorResponse{
		Status:  statusError,
		Message: "too many requests",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "http_url", "url":
		return "invalid url"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
