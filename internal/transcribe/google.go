package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://speech.googleapis.com/v1"

// GoogleConfig configures the Cloud Speech REST client.
type GoogleConfig struct {
	Endpoint     string // defaults to the public Speech API endpoint
	Token        string // OAuth bearer token or API gateway token
	LanguageCode string // defaults to en-US
	// JobTimeout bounds the whole recognize call including polling.
	JobTimeout time.Duration
	// PollInterval is how often the long-running operation is checked.
	PollInterval time.Duration
	HTTPClient   *http.Client
}

// GoogleClient runs long-running recognition jobs against the Cloud Speech
// REST API with two-speaker diarization enabled.
type GoogleClient struct {
	endpoint     string
	token        string
	languageCode string
	jobTimeout   time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
}

func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &GoogleClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		token:        cfg.Token,
		languageCode: cfg.LanguageCode,
		jobTimeout:   cfg.JobTimeout,
		pollInterval: cfg.PollInterval,
		httpClient:   cfg.HTTPClient,
	}
}

// Request/response shapes for the v1 REST surface. Only the fields this
// service reads are declared.

type recognitionConfig struct {
	Encoding                   string             `json:"encoding"`
	LanguageCode               string             `json:"languageCode"`
	EnableAutomaticPunctuation bool               `json:"enableAutomaticPunctuation"`
	Model                      string             `json:"model"`
	DiarizationConfig          *diarizationConfig `json:"diarizationConfig,omitempty"`
}

type diarizationConfig struct {
	EnableSpeakerDiarization bool `json:"enableSpeakerDiarization"`
	MinSpeakerCount          int  `json:"minSpeakerCount"`
	MaxSpeakerCount          int  `json:"maxSpeakerCount"`
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  struct {
		URI string `json:"uri"`
	} `json:"audio"`
}

type wordInfo struct {
	Word       string `json:"word"`
	SpeakerTag int    `json:"speakerTag"`
}

type operationResponse struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Response struct {
		Results []struct {
			Alternatives []struct {
				Words []wordInfo `json:"words"`
			} `json:"alternatives"`
		} `json:"results"`
	} `json:"response"`
}

// Recognize submits audioURI for long-running recognition and polls until the
// operation completes. The returned words are the concatenation of every
// result's first alternative, in service order, with service speaker tags.
func (c *GoogleClient) Recognize(ctx context.Context, audioURI string) ([]Word, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	req := recognizeRequest{
		Config: recognitionConfig{
			Encoding:                   "LINEAR16",
			LanguageCode:               c.languageCode,
			EnableAutomaticPunctuation: true,
			Model:                      "video",
			DiarizationConfig: &diarizationConfig{
				EnableSpeakerDiarization: true,
				MinSpeakerCount:          2,
				MaxSpeakerCount:          2,
			},
		},
	}
	req.Audio.URI = audioURI

	var op operationResponse
	if err := c.call(ctx, http.MethodPost, "/speech:longrunningrecognize", req, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, fmt.Errorf("transcribe: recognition job has no operation name")
	}
	log.Printf("Recognition job %s submitted for %s", op.Name, audioURI)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
		if err := c.call(ctx, http.MethodGet, "/operations/"+op.Name, nil, &op); err != nil {
			return nil, err
		}
	}

	if op.Error != nil {
		return nil, &ServiceError{Status: op.Error.Code, Body: op.Error.Message}
	}

	var words []Word
	for _, result := range op.Response.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		for _, w := range result.Alternatives[0].Words {
			words = append(words, Word{Text: w.Word, SpeakerTag: w.SpeakerTag})
		}
	}
	log.Printf("Recognition job %s done: %d words", op.Name, len(words))
	return words, nil
}

func (c *GoogleClient) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &ServiceError{Status: resp.StatusCode, Body: strings.TrimSpace(string(resBody))}
	}
	if out != nil {
		return json.Unmarshal(resBody, out)
	}
	return nil
}
