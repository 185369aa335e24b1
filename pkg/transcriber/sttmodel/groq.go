// Package sttmodel provides transcriber.Model adapters over hosted STT
// HTTP APIs, ported from the teacher's pkg/providers/stt groq/deepgram
// clients onto the PCM-buffer contract transcriber.Model expects.
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

const groqTranscriptionURL = "https://api.groq.com/openai/v1/audio/transcriptions"

// GroqModel transcribes via Groq's OpenAI-compatible Whisper endpoint.
// Grounded on the teacher's pkg/providers/stt/groq.go multipart upload
// pattern, adapted from raw-bytes audio to the normalized float32 PCM
// buffers transcriber.Transcriber hands to Model.Transcribe.
type GroqModel struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewGroqModel builds a client using model (e.g. "whisper-large-v3").
func NewGroqModel(apiKey, model string) *GroqModel {
	return &GroqModel{
		apiKey: apiKey,
		model:  model,
		url:    groqTranscriptionURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GroqModel) Transcribe(pcm []float32, sampleRate int, initialPrompt string) (transcriber.Result, error) {
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
	_ = writer.WriteField("model", g.model)
	if initialPrompt != "" {
		_ = writer.WriteField("prompt", initialPrompt)
	}
	if err := writer.Close(); err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: close multipart writer: %v", transcriber.ErrJob, err)
	}

	req, err := http.NewRequest(http.MethodPost, g.url, &body)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: build request: %v", transcriber.ErrJob, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: request failed: %v", transcriber.ErrJob, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: read response: %v", transcriber.ErrJob, err)
	}
	if resp.StatusCode != http.StatusOK {
		return transcriber.Result{}, fmt.Errorf("%w: groq status %d: %s", transcriber.ErrJob, resp.StatusCode, respBody)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return transcriber.Result{}, fmt.Errorf("%w: parse response: %v", transcriber.ErrJob, err)
	}

	return transcriber.Result{Text: parsed.Text}, nil
}

func floatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
