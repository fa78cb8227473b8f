package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

func statusCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8091", "miner admin base url")
	jobs := fs.Bool("jobs", false, "show furnace jobs instead of the session status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := "/admin/v1/status"
	if *jobs {
		path = "/admin/v1/jobs"
	}
	req, _ := http.NewRequest(http.MethodGet, strings.TrimRight(strings.TrimSpace(*baseURL), "/")+path, nil)
	return do(out, req, 5*time.Second)
}

func stopCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8091", "miner admin base url")
	reason := fs.String("reason", "admin", "stop reason recorded on the session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/stop?reason=" + url.QueryEscape(*reason)
	req, _ := http.NewRequest(http.MethodPost, u, nil)
	return do(out, req, 10*time.Second)
}

func do(out io.Writer, req *http.Request, timeout time.Duration) error {
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprint(out, string(b))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s", resp.Status)
	}
	return nil
}
