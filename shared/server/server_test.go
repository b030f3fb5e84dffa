package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestServe_DrainsInFlightRequestsOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	started := make(chan struct{})
	release := make(chan struct{})
	router := gin.New()
	router.GET("/slow", func(c *gin.Context) {
		close(started)
		<-release
		c.String(http.StatusOK, "done")
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	url := "http://" + ln.Addr().String() + "/slow"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- Serve(ctx, &http.Server{Handler: router}, ln, "test") }()

	type result struct {
		code int
		body string
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get(url)
		if err != nil {
			got <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		got <- result{code: resp.StatusCode, body: string(body)}
	}()

	<-started
	cancel()
	select {
	case err := <-served:
		t.Fatalf("expected Serve to wait for the in-flight request, returned %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	r := <-got
	if r.err != nil || r.code != http.StatusOK || r.body != "done" {
		t.Fatalf("expected in-flight request to finish, got %+v", r)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after shutdown")
	}

	if _, err := http.Get(url); err == nil {
		t.Fatalf("expected the listener to be closed")
	}
}

func TestServe_ReportsServerFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close()

	err = Serve(context.Background(), &http.Server{Handler: http.NotFoundHandler()}, ln, "test")
	if err == nil {
		t.Fatalf("expected an error for a closed listener")
	}
}
