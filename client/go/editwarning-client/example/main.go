// client/go/editwarning-client/example/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	editwarningclient "github.com/avivl/editwarning/client/go/editwarning-client"
)

// Simulates one editor opening a page, keeping the lock fresh while editing
// and releasing it on exit.
func main() {
	serverAddr := "localhost:8080"
	if len(os.Args) > 1 {
		serverAddr = os.Args[1]
	}

	documentID := int64(1)
	if len(os.Args) > 2 {
		id, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("Invalid document id %q: %v", os.Args[2], err)
		}
		documentID = id
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := editwarningclient.NewEditWarningClient(
		serverAddr,
		editwarningclient.WithUser(int64(os.Getpid()), "example-editor"),
		editwarningclient.WithRefreshInterval(30*time.Second),
	)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	out, err := client.Edit(ctx, documentID, 0)
	var apiErr *editwarningclient.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Unavailable():
		fmt.Println("Lock service unavailable, editing without protection")
		return
	case err != nil:
		log.Fatalf("Edit attempt failed: %v", err)
	}

	fmt.Printf("Decision for document %d: %s\n", documentID, out.Decision.Kind)
	if out.Notice != nil {
		fmt.Printf("Notice %s %v\n", out.Notice.Key, out.Notice.Params)
	}
	if out.Decision.Conflict() {
		return
	}

	if err := client.StartRefresh(ctx, documentID, 0); err != nil {
		log.Fatalf("Failed to start refresh: %v", err)
	}

	<-ctx.Done()
	client.StopRefresh()

	fmt.Println("Cancelling edit...")
	if _, err := client.Cancel(context.Background(), documentID); err != nil {
		log.Printf("Failed to cancel edit: %v", err)
	}
}
