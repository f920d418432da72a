package integration

import (
	"fmt"
	"time"
)

// TestAccount generates unique test account credentials using timestamp
func TestAccount(suffix string) (email, name, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	name = "Test " + suffix
	password = "correct-horse-battery"
	return
}
