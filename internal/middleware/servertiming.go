package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const serverTimingKey = "server_timing_phases"

type timingPhase struct {
	name     string
	duration time.Duration
}

type timingRecorder struct {
	mu     sync.Mutex
	phases []timingPhase
	start  time.Time
}

// ServerTiming starts a per-request phase recorder and, once the handler
// returns, attaches the accumulated phases as a standard Server-Timing header.
func ServerTiming() gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := &timingRecorder{start: time.Now()}
		c.Set(serverTimingKey, rec)
		c.Next()
		rec.mark("total", time.Since(rec.start))
		c.Header("Server-Timing", rec.render())
	}
}

// RecordPhase appends a named sub-phase duration to the current request's
// Server-Timing recorder. Safe to call from any middleware in the chain.
func RecordPhase(c *gin.Context, name string, d time.Duration) {
	if v, ok := c.Get(serverTimingKey); ok {
		if rec, ok := v.(*timingRecorder); ok {
			rec.mark(name, d)
		}
	}
}

func (r *timingRecorder) mark(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, timingPhase{name: name, duration: d})
}

func (r *timingRecorder) render() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ""
	for i, p := range r.phases {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s;dur=%.2f", p.name, float64(p.duration.Microseconds())/1000)
	}
	return out
}
