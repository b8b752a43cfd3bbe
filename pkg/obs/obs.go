package obs

import (
	"log"
	"os"
	"sync/atomic"
	"time"
)

var bootID atomic.Value // string

// Init stamps this process with a boot id; call once from main before logging.
func Init(service string) string {
	cwd, _ := os.Getwd()
	id := service + "#" + time.Now().Format("20060102_150405.000000")
	bootID.Store(id)
	log.Printf("[boot] id=%s pid=%d root=%s", id, os.Getpid(), cwd)
	return id
}

func BootID() string {
	id, _ := bootID.Load().(string)
	return id
}

// Since logs how long a stage took. Use as: defer obs.Since("phase1", time.Now()).
func Since(stage string, start time.Time) {
	log.Printf("[%s] done: cost=%s", stage, time.Since(start).Round(time.Microsecond))
}
