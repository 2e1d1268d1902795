package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RemoteReader is the C1 contract: a read-only view of the chain being
// forked, queried at or before the fork checkpoint. Implementations must
// be safe for concurrent use; ReadThroughStore never holds a lock across
// a RemoteReader call.
type RemoteReader interface {
	// GetObject fetches an object by id. If version is 0 the reader
	// returns the latest version known at the fork checkpoint; otherwise
	// it returns that exact version. ok is false (err nil) if no such
	// object/version exists upstream.
	GetObject(ctx context.Context, id ObjectID, version Version) (obj *Object, ok bool, err error)

	// CheckpointInfo reports the checkpoint this reader is pinned to.
	CheckpointInfo(ctx context.Context) (CheckpointSeq, Digest, error)
}

// httpRemoteReader implements RemoteReader against an upstream fullnode
// JSON API, following the request/response idiom of
// cmd/xchainserver/server/handlers.go: JSON request bodies, a decoded
// JSON response, explicit status-code handling.
type httpRemoteReader struct {
	baseURL    string
	client     *http.Client
	checkpoint CheckpointSeq
	limiter    *rate.Limiter
	maxRetries int
	log        *loggerT
}

// NewHTTPRemoteReader builds a RemoteReader backed by an upstream HTTP
// endpoint pinned to checkpoint. Transport errors and 5xx responses are
// retried up to maxRetries times, with an exponential backoff between
// attempts and a golang.org/x/time/rate token-bucket limiter capping
// retry pressure on the upstream. Other non-200 responses and bodies
// that fail to decode are returned at once.
func NewHTTPRemoteReader(baseURL string, checkpoint CheckpointSeq) *httpRemoteReader {
	return &httpRemoteReader{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		checkpoint: checkpoint,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		maxRetries: 3,
		log:        remoteLog,
	}
}

type getObjectRequest struct {
	ObjectID   ObjectID      `json:"object_id"`
	Version    Version       `json:"version,omitempty"`
	Checkpoint CheckpointSeq `json:"checkpoint"`
}

type getObjectResponse struct {
	Found  bool    `json:"found"`
	Object *Object `json:"object,omitempty"`
}

func (r *httpRemoteReader) GetObject(ctx context.Context, id ObjectID, version Version) (*Object, bool, error) {
	reqBody := getObjectRequest{ObjectID: id, Version: version, Checkpoint: r.checkpoint}
	var resp getObjectResponse
	if err := r.postJSON(ctx, "/object", reqBody, &resp); err != nil {
		return nil, false, wrapRemote("remote_get_object", err)
	}
	if !resp.Found {
		return nil, false, nil
	}
	return resp.Object, true, nil
}

type checkpointInfoResponse struct {
	Sequence CheckpointSeq `json:"sequence"`
	Digest   Digest        `json:"digest"`
}

func (r *httpRemoteReader) CheckpointInfo(ctx context.Context) (CheckpointSeq, Digest, error) {
	var resp checkpointInfoResponse
	if err := r.postJSON(ctx, "/checkpoint", struct {
		Sequence CheckpointSeq `json:"sequence"`
	}{r.checkpoint}, &resp); err != nil {
		return 0, Digest{}, wrapRemote("remote_checkpoint_info", err)
	}
	return resp.Sequence, resp.Digest, nil
}

func (r *httpRemoteReader) postJSON(ctx context.Context, path string, reqBody, respBody interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = err
			r.log.WithFields(map[string]interface{}{"path": path, "attempt": attempt}).Warn("remote reader transport error")
			continue
		}
		retryable := false
		func() {
			defer resp.Body.Close()
			if resp.StatusCode >= 500 {
				lastErr = fmt.Errorf("remote reader: status %d", resp.StatusCode)
				retryable = true
				return
			}
			if resp.StatusCode != http.StatusOK {
				lastErr = fmt.Errorf("remote reader: status %d", resp.StatusCode)
				return
			}
			lastErr = json.NewDecoder(resp.Body).Decode(respBody)
		}()
		if !retryable {
			return lastErr
		}
	}
	return lastErr
}
