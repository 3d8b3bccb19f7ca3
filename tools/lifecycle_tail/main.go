// Command lifecycle_tail follows the bot's lifecycle SSE stream.
// With one connection it prints every token transition; with more it only counts them,
// which is useful for checking how the web endpoint behaves under many followers.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

func main() {
	var (
		targetURL   string
		connections int
		duration    time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/lifecycle/stream", "lifecycle SSE endpoint URL")
	flag.IntVar(&connections, "conns", 1, "number of concurrent followers")
	flag.DurationVar(&duration, "dur", 0, "how long to follow (0 for until interrupted)")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 10,
			MaxIdleConnsPerHost: connections + 10,
			DisableCompression:  true,
			DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		},
	}

	var (
		connectErrs int64
		transitions int64
		wg          sync.WaitGroup
	)
	start := time.Now()

	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func(verbose bool) {
			defer wg.Done()
			err := follow(ctx, client, targetURL, func(ev domain.LifecycleEvent) {
				atomic.AddInt64(&transitions, 1)
				if verbose {
					fmt.Fprintln(os.Stdout, formatEvent(ev))
				}
			})
			if err != nil && ctx.Err() == nil {
				atomic.AddInt64(&connectErrs, 1)
				log.Printf("follow: %v", err)
			}
		}(connections == 1)
	}

	wg.Wait()
	fmt.Printf("done: conns=%d connect_errs=%d transitions=%d elapsed=%s\n",
		connections,
		atomic.LoadInt64(&connectErrs),
		atomic.LoadInt64(&transitions),
		time.Since(start).Truncate(time.Millisecond))
}

func follow(ctx context.Context, client *http.Client, url string, onEvent func(domain.LifecycleEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return readTransitions(resp.Body, onEvent)
}

// readTransitions decodes "transition" events until r ends. Heartbeat comments are skipped.
func readTransitions(r io.Reader, onEvent func(domain.LifecycleEvent)) error {
	scanner := bufio.NewScanner(r)
	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && event == "transition":
			var ev domain.LifecycleEvent
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev); err != nil {
				return fmt.Errorf("decode transition: %w", err)
			}
			onEvent(ev)
		}
	}

	return scanner.Err()
}

func formatEvent(ev domain.LifecycleEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-44s %s -> %s", ev.At.Format(time.TimeOnly), ev.TokenID, ev.From, ev.To)
	for _, k := range []string{"exit_reason", "kind", "error", "buy_tx", "sell_tx", "ratio", "volume"} {
		if v, ok := ev.Detail[k]; ok {
			fmt.Fprintf(&b, " %s=%s", k, v)
		}
	}

	return b.String()
}
