package store

import "fmt"

func storedKeys(kv *SQLiteKV) ([]string, error) {
	rows, err := kv.db.Query("SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func storedCount(kv *MemoryKV) int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.values)
}
