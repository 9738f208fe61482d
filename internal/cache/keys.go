package cache

import "fmt"

// WorkerStatsKey caches the latest WorkerStats row for one mode.
func WorkerStatsKey(mode string) string {
	return fmt.Sprintf("worker_stats:%s", mode)
}

// GeoKey caches a resolved geo lookup for one client IP.
func GeoKey(ip string) string {
	return fmt.Sprintf("geo:%s", ip)
}
