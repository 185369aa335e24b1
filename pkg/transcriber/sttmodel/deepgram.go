package sttmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dlparker/palaver/pkg/transcriber"
)

const deepgramListenURL = "https://api.deepgram.com/v1/listen"

// DeepgramModel transcribes via Deepgram's raw-PCM listen endpoint.
// Grounded on the teacher's pkg/providers/stt/deepgram.go raw-body POST
// pattern with model/smart_format query params and Token auth.
type DeepgramModel struct {
	apiKey string
	url    string
	client *http.Client
}

// NewDeepgramModel builds a client. Deepgram's initial-prompt support is
// limited to keyword boosting, not a free-text prompt; initialPrompt is
// accepted by Transcribe for interface compliance but otherwise ignored.
func NewDeepgramModel(apiKey string) *DeepgramModel {
	return &DeepgramModel{apiKey: apiKey, url: deepgramListenURL, client: &http.Client{Timeout: 30 * time.Second}}
}

func (d *DeepgramModel) Transcribe(pcm []float32, sampleRate int, initialPrompt string) (transcriber.Result, error) {
	raw := floatToPCM16(pcm)

	q := url.Values{}
	q.Set("model", "nova-2")
	q.Set("smart_format", "true")
	q.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	reqURL := d.url + "?" + q.Encode()

	req, err := http.NewRequest(http.MethodPost, reqURL, bytes.NewReader(raw))
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: build request: %v", transcriber.ErrJob, err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/raw")

	resp, err := d.client.Do(req)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: request failed: %v", transcriber.ErrJob, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: read response: %v", transcriber.ErrJob, err)
	}
	if resp.StatusCode != http.StatusOK {
		return transcriber.Result{}, fmt.Errorf("%w: deepgram status %d: %s", transcriber.ErrJob, resp.StatusCode, body)
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: parse response: %v", transcriber.ErrJob, err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return transcriber.Result{Text: transcriber.Blank}, nil
	}

	return transcriber.Result{Text: parsed.Results.Channels[0].Alternatives[0].Transcript}, nil
}
