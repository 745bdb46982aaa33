package httpapi

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prepdeck/interview-coach/internal/blob"
	"github.com/prepdeck/interview-coach/internal/events"
	"github.com/prepdeck/interview-coach/internal/feedback"
	"github.com/prepdeck/interview-coach/internal/interview"
	"github.com/prepdeck/interview-coach/internal/media"
	"github.com/prepdeck/interview-coach/internal/metrics"
	"github.com/prepdeck/interview-coach/internal/pipeline"
	"github.com/prepdeck/interview-coach/internal/transcribe"
	"github.com/prepdeck/interview-coach/internal/transcript"
)

func makeWAV(sampleRate, channels int, samples []int16) []byte {
	dataLen := len(samples) * 2
	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range samples {
		binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

type stubRecognizer struct {
	words []transcribe.Word
	err   error
}

func (s *stubRecognizer) Recognize(context.Context, string) ([]transcribe.Word, error) {
	return s.words, s.err
}

type stubCompleter struct {
	response string
}

func (s *stubCompleter) Complete(context.Context, string, int) (string, error) {
	return s.response, nil
}

type apiFixture struct {
	srv        *httptest.Server
	hub        *events.Hub
	records    interview.Store
	recognizer *stubRecognizer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	blobs, err := blob.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	records := interview.NewMemoryStore()
	hub := events.NewHub(0)
	stats := metrics.NewPipeline()
	recognizer := &stubRecognizer{words: []transcribe.Word{
		{Text: "Tell", SpeakerTag: 1},
		{Text: "me.", SpeakerTag: 1},
		{Text: "Sure.", SpeakerTag: 2},
	}}
	p := pipeline.New(
		records,
		blobs,
		&media.AudioNormalizer{},
		recognizer,
		feedback.NewGenerator(&stubCompleter{response: "Solid answers overall."}, 0),
		pipeline.NewMemoryLocker(),
		hub,
		stats,
		pipeline.Config{},
	)

	api := New(Config{}, p, records, hub, stats)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiFixture{srv: srv, hub: hub, records: records, recognizer: recognizer}
}

func (f *apiFixture) postJSON(t *testing.T, path string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (f *apiFixture) createInterview(t *testing.T, jobTitle string) string {
	t.Helper()
	resp := f.postJSON(t, "/interviews", fmt.Sprintf(`{"job_title":%q}`, jobTitle))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}
	var rec interview.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return rec.ID
}

func (f *apiFixture) uploadWAV(t *testing.T, id string, payload []byte) *http.Response {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", "interview.wav")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(payload)
	mw.Close()

	resp, err := http.Post(f.srv.URL+"/interviews/"+id+"/upload", mw.FormDataContentType(), buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestCreateInterview(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postJSON(t, "/interviews", `{"job_title":"Backend Engineer"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var rec interview.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected a generated id")
	}
	if rec.JobTitle != "Backend Engineer" {
		t.Errorf("job_title = %q", rec.JobTitle)
	}
	if rec.Status != interview.StatusUploaded {
		t.Errorf("status = %q, want %q", rec.Status, interview.StatusUploaded)
	}
}

func TestCreateInterviewValidation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		description string
		body        string
	}{
		{"missing job title", `{}`},
		{"blank job title", `{"job_title":"   "}`},
		{"invalid json", `{job_title`},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			resp := f.postJSON(t, "/interviews", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestGetInterviewNotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.srv.URL + "/interviews/no-such-id")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUploadAdvancesInterview(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Data Analyst")

	resp := f.uploadWAV(t, id, makeWAV(44100, 2, []int16{100, 300, -100, 100}))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Message   string           `json:"message"`
		Interview interview.Record `json:"interview"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Interview.Status != interview.StatusAudioExtracted {
		t.Errorf("status = %q, want %q", body.Interview.Status, interview.StatusAudioExtracted)
	}
	if body.Interview.AudioRef == "" {
		t.Error("expected an audio ref after upload")
	}
}

func TestUploadWithoutFile(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Data Analyst")

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	mw.WriteField("note", "no file here")
	mw.Close()

	resp, err := http.Post(f.srv.URL+"/interviews/"+id+"/upload", mw.FormDataContentType(), buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Product Manager")
	f.uploadWAV(t, id, makeWAV(44100, 1, []int16{10, 20, 30, 40})).Body.Close()

	resp := f.postJSON(t, "/interviews/"+id+"/transcribe", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Transcript transcript.Transcript `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Transcript) != 2 {
		t.Fatalf("utterances = %d, want 2", len(body.Transcript))
	}
	if body.Transcript[0].Speaker != transcript.RoleInterviewer {
		t.Errorf("first speaker = %q, want %q", body.Transcript[0].Speaker, transcript.RoleInterviewer)
	}
	if body.Transcript[1].Speaker != transcript.RoleCandidate {
		t.Errorf("second speaker = %q, want %q", body.Transcript[1].Speaker, transcript.RoleCandidate)
	}
}

func TestTranscribeBeforeUpload(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Product Manager")

	resp := f.postJSON(t, "/interviews/"+id+"/transcribe", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Product Manager")
	f.uploadWAV(t, id, makeWAV(44100, 1, []int16{10, 20, 30, 40})).Body.Close()
	f.postJSON(t, "/interviews/"+id+"/transcribe", "").Body.Close()

	resp := f.postJSON(t, "/interviews/"+id+"/feedback", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["feedback"] != "Solid answers overall." {
		t.Errorf("feedback = %q", body["feedback"])
	}

	rec, err := f.records.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != interview.StatusFeedbackReady {
		t.Errorf("status = %q, want %q", rec.Status, interview.StatusFeedbackReady)
	}
}

func TestTranscriptEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Product Manager")
	f.uploadWAV(t, id, makeWAV(44100, 1, []int16{10, 20, 30, 40})).Body.Close()
	f.postJSON(t, "/interviews/"+id+"/transcribe", "").Body.Close()

	resp, err := http.Get(f.srv.URL + "/interviews/" + id + "/transcript")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		JobTitle   string                `json:"job_title"`
		Transcript transcript.Transcript `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.JobTitle != "Product Manager" {
		t.Errorf("job_title = %q", body.JobTitle)
	}
	if len(body.Transcript) != 2 {
		t.Errorf("utterances = %d, want 2", len(body.Transcript))
	}
}

func TestDeleteInterview(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Designer")

	req, _ := http.NewRequest(http.MethodDelete, f.srv.URL+"/interviews/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	get, err := http.Get(f.srv.URL + "/interviews/" + id)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", get.StatusCode)
	}
}

func TestListInterviews(t *testing.T) {
	f := newAPIFixture(t)
	f.createInterview(t, "First")
	f.createInterview(t, "Second")

	resp, err := http.Get(f.srv.URL + "/interviews")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var records []interview.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

func TestAbandonEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Designer")

	resp := f.postJSON(t, "/interviews/"+id+"/abandon", `{"reason":"candidate withdrew"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var rec interview.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Status != interview.StatusFailed {
		t.Errorf("status = %q, want %q", rec.Status, interview.StatusFailed)
	}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Engineer")
	f.uploadWAV(t, id, makeWAV(44100, 1, []int16{10, 20})).Body.Close()

	resp, err := http.Get(f.srv.URL + "/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var snap metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Stages["upload"].Succeeded != 1 {
		t.Errorf("upload succeeded = %d, want 1", snap.Stages["upload"].Succeeded)
	}
}

func TestEventsWebsocket(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Engineer")

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/interviews/" + id + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	f.hub.Publish(events.Event{
		InterviewID: id,
		Type:        events.TypeStatus,
		Stage:       "upload",
		Status:      interview.StatusAudioExtracted,
	})
	// An event for a different interview must not reach this subscriber.
	f.hub.Publish(events.Event{InterviewID: "other", Type: events.TypeStatus})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.InterviewID != id {
		t.Errorf("interview_id = %q, want %q", got.InterviewID, id)
	}
	if got.Stage != "upload" {
		t.Errorf("stage = %q, want %q", got.Stage, "upload")
	}
}

func TestEventsWebsocketReplay(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInterview(t, "Engineer")

	first := f.hub.Publish(events.Event{InterviewID: id, Type: events.TypeStatus, Stage: "upload"})
	f.hub.Publish(events.Event{InterviewID: id, Type: events.TypeStatus, Stage: "transcribe"})

	wsURL := fmt.Sprintf("ws%s/interviews/%s/events?since=%d",
		strings.TrimPrefix(f.srv.URL, "http"), id, first.Seq)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Stage != "transcribe" {
		t.Errorf("replayed stage = %q, want %q (events at or before since must be skipped)", got.Stage, "transcribe")
	}
}

func TestEventsWebsocketUnknownInterview(t *testing.T) {
	f := newAPIFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/interviews/no-such-id/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected dial to fail for unknown interview")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 handshake response, got %+v", resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
}
