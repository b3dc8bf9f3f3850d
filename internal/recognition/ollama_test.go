package recognition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"floravision/internal/testsupport"
)

func TestOllamaDetectorScalesFractionalBoxes(t *testing.T) {
	reply := `{"detections":[{"name":"sunflower","confidence":0.8,"bbox":[0.25,0.5,0.75,1.0]},{"name":"weed","confidence":0.1,"bbox":[0,0,1,1]}]}`
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/show":
			_, _ = w.Write([]byte(`{}`))
		case "/api/chat":
			var req struct {
				Model    string `json:"model"`
				Messages []struct {
					Images []string `json:"images"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode chat request: %v", err)
			}
			gotModel = req.Model
			if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 {
				t.Errorf("expected one message with one image, got %+v", req.Messages)
			}
			out, _ := json.Marshal(map[string]any{
				"model":   req.Model,
				"message": map[string]string{"role": "assistant", "content": reply},
				"done":    true,
			})
			_, _ = w.Write(append(out, '\n'))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "sun.png")
	testsupport.WritePNG(t, img, 200, 100)

	det, err := NewOllamaDetector(srv.URL+"/ignored", "qwen2.5vl:7b", srv.Client())
	if err != nil {
		t.Fatalf("NewOllamaDetector: %v", err)
	}
	if err := det.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	results, err := det.Detect(context.Background(), img, 0.25, 0.45)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if gotModel != "qwen2.5vl:7b" {
		t.Fatalf("unexpected model %q", gotModel)
	}
	if len(results) != 1 {
		t.Fatalf("expected low-confidence detection filtered, got %+v", results)
	}
	want := [4]float64{50, 50, 150, 100}
	if results[0].BBox != want {
		t.Fatalf("expected %v, got %v", want, results[0].BBox)
	}
}

func TestParseVisionReplyStripsFences(t *testing.T) {
	raw := "```json\n{\"detections\":[{\"name\":\"lily\",\"confidence\":0.7,\"bbox\":[0,0,0.5,0.5]}]}\n```"
	got, err := parseVisionReply(raw, 10, 10, 0.25)
	if err != nil {
		t.Fatalf("parseVisionReply: %v", err)
	}
	if len(got) != 1 || got[0].Name != "lily" || got[0].BBox[2] != 5 {
		t.Fatalf("unexpected detections %+v", got)
	}

	if _, err := parseVisionReply("no flowers here", 10, 10, 0.25); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
}

func TestNewOllamaDetectorValidates(t *testing.T) {
	if _, err := NewOllamaDetector("http://127.0.0.1:11434", "", nil); err == nil {
		t.Fatal("expected error without model")
	}
	if _, err := NewOllamaDetector("not a url", "m", nil); err == nil {
		t.Fatal("expected error for endpoint without host")
	}
}
