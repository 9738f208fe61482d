package db

// RowID extracts a row's integer id regardless of which concrete numeric
// type the driver scanned it as (lib/pq returns int64 for INTEGER/SERIAL
// columns scanned into `any`).
func RowID(row map[string]any) int {
	switch v := row["id"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
