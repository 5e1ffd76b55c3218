package taskqueue

import (
	"go.uber.org/zap"

	"github.com/hibiken/asynq"
)

var (
	asynqClient *asynq.Client
	asynqMux    = asynq.NewServeMux()
	asynqSrv    *asynq.Server
)

// StartWorkers starts Asynq workers. Blocks until the server stops.
func StartWorkers(redisAddr string, log *zap.Logger) {
	log.Info("starting task workers", zap.String("redis", redisAddr))
	asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	asynqMux.HandleFunc(TypeFleetScan, processFleetScanTask)
	asynqSrv = asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: 10})
	if err := asynqSrv.Run(asynqMux); err != nil {
		log.Fatal("task workers failed", zap.Error(err))
	}
}

// StopWorkers stops workers and closes the client
func StopWorkers() {
	if asynqSrv != nil {
		asynqSrv.Stop()
	}
	if asynqClient != nil {
		asynqClient.Close()
	}
}
