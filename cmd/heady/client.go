package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/takshit12/headycoasaas/internal/api"
	"github.com/takshit12/headycoasaas/internal/livefeed"
	"github.com/takshit12/headycoasaas/internal/model"
)

type clientFlags struct {
	server string
	token  string
}

func (c *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.server, "server", envOr("HEADY_SERVER", "http://localhost:8080"), "API server base URL")
	cmd.Flags().StringVar(&c.token, "token", os.Getenv("HEADY_TOKEN"), "Bearer token for the API")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newUploadCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a Certificate of Analysis PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return uploadFile(cmd.Context(), &flags, args[0], cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	return cmd
}

func uploadFile(ctx context.Context, flags *clientFlags, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdf"; filename=%q`, filepath.Base(path)))
	hdr.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(hdr)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, flags.server+"/lab-results", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+flags.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result api.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !result.Success {
		return errors.New(result.Error)
	}
	fmt.Fprintln(out, result.Message)
	return nil
}

func newListCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show your lab results, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := fetchSnapshot(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), livefeed.Render(records, time.Now()))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newWatchCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow your lab results live as they are processed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd.Context(), &flags, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	return cmd
}

// watch seeds the view from a snapshot, then folds live change events into it
// and re-renders after each one.
func watch(ctx context.Context, flags *clientFlags, out io.Writer) error {
	records, err := fetchSnapshot(ctx, flags)
	if err != nil {
		return err
	}
	feed := livefeed.New(records)
	render := func() {
		fmt.Fprint(out, "\033[H\033[2J")
		fmt.Fprint(out, livefeed.Render(feed.Records(), time.Now()))
	}
	render()

	grant, err := fetchFeedToken(ctx, flags)
	if err != nil {
		return err
	}

	eventsURL := fmt.Sprintf("%s/lab-results/events?user=%s&expires=%d&signature=%s",
		flags.server, url.QueryEscape(grant.UserID), grant.Expires, grant.Signature)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, eventsURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev model.Event
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev); err != nil {
			continue
		}
		feed.Apply(ev)
		render()
	}
	if err := sc.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func fetchSnapshot(ctx context.Context, flags *clientFlags) ([]model.LabResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, flags.server+"/lab-results", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+flags.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list returned status %d", resp.StatusCode)
	}
	var records []model.LabResult
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

type feedGrant struct {
	UserID    string `json:"userId"`
	Expires   int64  `json:"expires"`
	Signature string `json:"signature"`
}

func fetchFeedToken(ctx context.Context, flags *clientFlags) (*feedGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, flags.server+"/lab-results/feed-token", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+flags.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed-token returned status %d", resp.StatusCode)
	}
	var grant feedGrant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, err
	}
	return &grant, nil
}
