package sttmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/transcriber"
)

const openAITranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"

// OpenAIModel transcribes via OpenAI's Whisper endpoint. Shares Groq's
// multipart upload shape since both implement the same API surface.
type OpenAIModel struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewOpenAIModel builds a client using model (e.g. "whisper-1").
func NewOpenAIModel(apiKey, model string) *OpenAIModel {
	return &OpenAIModel{
		apiKey: apiKey,
		model:  model,
		url:    openAITranscriptionURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *OpenAIModel) Transcribe(pcm []float32, sampleRate int, initialPrompt string) (transcriber.Result, error) {
	wav := audio.EncodeWAV16(floatToPCM16(pcm), sampleRate)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: create form file: %v", transcriber.ErrJob, err)
	}
	if _, err := part.Write(wav); err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: write audio: %v", transcriber.ErrJob, err)
	}
	_ = writer.WriteField("model", o.model)
	if initialPrompt != "" {
		_ = writer.WriteField("prompt", initialPrompt)
	}
	if err := writer.Close(); err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: close multipart writer: %v", transcriber.ErrJob, err)
	}

	req, err := http.NewRequest(http.MethodPost, o.url, &body)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: build request: %v", transcriber.ErrJob, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: request failed: %v", transcriber.ErrJob, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: read response: %v", transcriber.ErrJob, err)
	}
	if resp.StatusCode != http.StatusOK {
		return transcriber.Result{}, fmt.Errorf("%w: openai status %d: %s", transcriber.ErrJob, resp.StatusCode, respBody)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: parse response: %v", transcriber.ErrJob, err)
	}

	return transcriber.Result{Text: parsed.Text}, nil
}
