package database

import (
	"fmt"

	"github.com/hibiken/asynq"
)

// ConnectQueue returns an asynq client bound to the given redis address.
func ConnectQueue(addr string) (*asynq.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("queue redis address must not be empty")
	}

	return asynq.NewClient(asynq.RedisClientOpt{Addr: addr}), nil
}
