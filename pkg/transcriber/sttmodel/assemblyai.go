package sttmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dlparker/palaver/pkg/transcriber"
)

const (
	assemblyAIUploadURL     = "https://api.assemblyai.com/v2/upload"
	assemblyAITranscriptURL = "https://api.assemblyai.com/v2/transcript"
	assemblyAIPollInterval  = 500 * time.Millisecond
	assemblyAIPollTimeout   = 25 * time.Second
)

// AssemblyAIModel transcribes via AssemblyAI's upload-then-poll flow:
// unlike Groq/OpenAI/Deepgram's single-request APIs, a raw-audio upload
// returns a URL, a transcript job is created against that URL, and the
// result is polled until it reaches a terminal status.
type AssemblyAIModel struct {
	apiKey string
	client *http.Client
}

func NewAssemblyAIModel(apiKey string) *AssemblyAIModel {
	return &AssemblyAIModel{apiKey: apiKey, client: &http.Client{Timeout: 30 * time.Second}}
}

func (a *AssemblyAIModel) Transcribe(pcm []float32, sampleRate int, initialPrompt string) (transcriber.Result, error) {
	uploadURL, err := a.upload(floatToPCM16(pcm))
	if err != nil {
		return transcriber.Result{}, err
	}

	transcriptID, err := a.createTranscript(uploadURL)
	if err != nil {
		return transcriber.Result{}, err
	}

	return a.poll(transcriptID)
}

func (a *AssemblyAIModel) upload(raw []byte) (string, error) {
	req, err := http.NewRequest(http.MethodPost, assemblyAIUploadURL, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: build upload request: %v", transcriber.ErrJob, err)
	}
	req.Header.Set("Authorization", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: upload failed: %v", transcriber.ErrJob, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read upload response: %v", transcriber.ErrJob, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: assemblyai upload status %d: %s", transcriber.ErrJob, resp.StatusCode, body)
	}

	var parsed struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse upload response: %v", transcriber.ErrJob, err)
	}
	return parsed.UploadURL, nil
}

func (a *AssemblyAIModel) createTranscript(audioURL string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"audio_url": audioURL})
	req, err := http.NewRequest(http.MethodPost, assemblyAITranscriptURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build transcript request: %v", transcriber.ErrJob, err)
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: create transcript failed: %v", transcriber.ErrJob, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read transcript response: %v", transcriber.ErrJob, err)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse transcript response: %v", transcriber.ErrJob, err)
	}
	return parsed.ID, nil
}

func (a *AssemblyAIModel) poll(transcriptID string) (transcriber.Result, error) {
	deadline := time.Now().Add(assemblyAIPollTimeout)
	url := assemblyAITranscriptURL + "/" + transcriptID

	for time.Now().Before(deadline) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return transcriber.Result{}, fmt.Errorf("%w: build poll request: %v", transcriber.ErrJob, err)
		}
		req.Header.Set("Authorization", a.apiKey)

		resp, err := a.client.Do(req)
		if err != nil {
			return transcriber.Result{}, fmt.Errorf("%w: poll failed: %v", transcriber.ErrJob, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return transcriber.Result{}, fmt.Errorf("%w: read poll response: %v", transcriber.ErrJob, err)
		}

		var parsed struct {
			Status string `json:"status"`
			Text   string `json:"text"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return transcriber.Result{}, fmt.Errorf("%w: parse poll response: %v", transcriber.ErrJob, err)
		}

		switch parsed.Status {
		case "completed":
			return transcriber.Result{Text: parsed.Text}, nil
		case "error":
			return transcriber.Result{}, fmt.Errorf("%w: assemblyai transcription error: %s", transcriber.ErrJob, parsed.Error)
		}
		time.Sleep(assemblyAIPollInterval)
	}
	return transcriber.Result{}, fmt.Errorf("%w: assemblyai poll timed out", transcriber.ErrJob)
}
