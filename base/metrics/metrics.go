/*
Package metrics wraps datadog-go to facilitate metric recording.

Naming convention:
  - internal process time: *.time
  - error: *.err
  - counters: plain keys
*/
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/spf13/viper"

	"github.com/galleria/goapi/base/log"
)

// Ender ends a timing started by BumpTime
type Ender interface {
	End()
}

// Service provides interface for metrics
type Service interface {
	BumpAvg(key string, val float64, tags ...string)
	BumpSum(key string, val float64, tags ...string)
	BumpHistogram(key string, val float64, tags ...string)
	BumpTime(key string, tags ...string) Ender
}

var (
	initOnce sync.Once
	client   statsdClient
)

type statsdClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	TimeInMilliseconds(name string, value float64, tags []string, rate float64) error
}

// noopClient is used when no datadog agent is configured, e.g. local runs and
// tests.
type noopClient struct{}

func (noopClient) Gauge(string, float64, []string, float64) error              { return nil }
func (noopClient) Count(string, int64, []string, float64) error                { return nil }
func (noopClient) Histogram(string, float64, []string, float64) error          { return nil }
func (noopClient) TimeInMilliseconds(string, float64, []string, float64) error { return nil }

func initClient() {
	host := viper.GetString("datadog_host")
	if host == "" {
		client = noopClient{}
		return
	}
	addr := fmt.Sprintf("%s:%d", host, 8125)
	log.Log().WithField("addr", addr).Info("connecting to datadog agent")
	c, err := statsd.NewBuffered(addr, 10)
	if err != nil {
		log.Log().WithFields(log.Fields{"addr": addr, "err": err}).Panic("can't talk to datadog agent")
	}
	client = c
}

// New creates a metric service with package name as prefix
func New(pkgName string) Service {
	return &impl{
		pkgName: pkgName,
		tags: []string{
			"env:" + viper.GetString("env_name"),
			"app:" + viper.GetString("app_name"),
		},
	}
}

type impl struct {
	pkgName string
	tags    []string
}

func (m *impl) key(key string) string {
	return m.pkgName + "." + key
}

// parseTag converts ("method", "GET", "path", "/x") pairs into datadog form
func parseTag(tags []string) []string {
	parsed := make([]string, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		parsed = append(parsed, strings.ToLower(tags[i])+":"+tags[i+1])
	}
	return parsed
}

func (m *impl) BumpAvg(key string, val float64, tags ...string) {
	initOnce.Do(initClient)
	if err := client.Gauge(m.key(key), val, append(m.tags, parseTag(tags)...), 1); err != nil {
		log.Log().WithFields(log.Fields{"err": err, "key": key}).Error("BumpAvg failed")
	}
}

func (m *impl) BumpSum(key string, val float64, tags ...string) {
	initOnce.Do(initClient)
	if err := client.Count(m.key(key), int64(val), append(m.tags, parseTag(tags)...), 1); err != nil {
		log.Log().WithFields(log.Fields{"err": err, "key": key}).Error("BumpSum failed")
	}
}

func (m *impl) BumpHistogram(key string, val float64, tags ...string) {
	initOnce.Do(initClient)
	if err := client.Histogram(m.key(key), val, append(m.tags, parseTag(tags)...), 1); err != nil {
		log.Log().WithFields(log.Fields{"err": err, "key": key}).Error("BumpHistogram failed")
	}
}

type timer struct {
	metrics *impl
	key     string
	tags    []string
	start   time.Time
}

func (t *timer) End() {
	initOnce.Do(initClient)
	elapsed := float64(time.Since(t.start)) / float64(time.Millisecond)
	if err := client.TimeInMilliseconds(t.metrics.key(t.key), elapsed, append(t.metrics.tags, parseTag(t.tags)...), 1); err != nil {
		log.Log().WithFields(log.Fields{"err": err, "key": t.key}).Error("BumpTime failed")
	}
}

func (m *impl) BumpTime(key string, tags ...string) Ender {
	return &timer{metrics: m, key: key, tags: tags, start: time.Now()}
}
