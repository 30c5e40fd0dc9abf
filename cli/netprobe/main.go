package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/KarpelesLab/netreq"
	"github.com/KarpelesLab/webutil"
)

// send a single request through the request layer and print the outcome

var (
	target  = flag.String("url", "", "url to query")
	method  = flag.String("method", "GET", "http method")
	params  = flag.String("params", "", "params to pass, json or url encoded")
	auth    = flag.Bool("auth", false, "send as an authenticated request")
	user    = flag.String("user", "", "username for authenticated requests")
	pass    = flag.String("pass", "", "password for authenticated requests")
	timeout = flag.Duration("timeout", 30*time.Second, "request timeout")
	debug   = flag.Bool("debug", false, "enable debug logs")
)

func main() {
	flag.Parse()
	if *target == "" {
		log.Printf("parameter -url is required")
		flag.Usage()
		os.Exit(1)
	}
	netreq.Debug = *debug

	var p map[string]any
	if param := *params; param != "" {
		if param[0] == '{' {
			// json
			if err := json.Unmarshal([]byte(param), &p); err != nil {
				log.Printf("invalid json params: %s", err)
				os.Exit(1)
			}
		} else {
			// url encoded
			p = webutil.ParsePhpQuery(param)
		}
	}

	if err := probe(p); err != nil {
		log.Printf("request failed: %s", err)
		if netreq.IsRetryable(err) {
			log.Printf("error is retryable")
		}
		os.Exit(1)
	}
}

func probe(p map[string]any) error {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *auth {
		ctx = (&netreq.Credentials{Username: *user, Password: *pass}).Use(ctx)
	}

	d := netreq.NewDispatcher(netreq.WithUserAgent("netprobe/1.0"))
	defer d.Close()
	m := netreq.NewManager(d)
	defer m.Close()

	var param any
	if p != nil {
		param = p
	}
	req, err := netreq.NewJSONRequest(ctx, *method, *target, param)
	if err != nil {
		return err
	}
	req.RequiresAuth = *auth
	req.CheckDeregistration = *auth

	res, err := m.Send(ctx, req)
	if err != nil {
		var e *netreq.Error
		if errors.As(err, &e) && e.Kind == netreq.KindServiceResponse {
			fmt.Printf("%d %s\n", e.StatusCode, http.StatusText(e.StatusCode))
			fmt.Printf("retry after: %s\n", e.RetryAfterDelay(netreq.DefaultRetryAfter))
		}
		return err
	}

	fmt.Printf("%d %s\n", res.StatusCode, http.StatusText(res.StatusCode))
	if str, err := res.BodyString(); err == nil {
		fmt.Println(str)
	} else {
		fmt.Printf("(%d bytes of binary data)\n", len(res.Body))
	}
	return nil
}
