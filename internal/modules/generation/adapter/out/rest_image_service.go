package out

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"pixelbooth/internal/modules/generation/domain"
	generationout "pixelbooth/internal/modules/generation/port/out"
)

// Controlnet preprocessors understood by the remote API.
const (
	preprocessorCharacter = 133
	preprocessorStyle     = 67
)

// RESTImageService talks to a hosted image generation API: an init-image
// handshake followed by a presigned multipart upload, then generation jobs
// that reference uploaded or previously generated images.
type RESTImageService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRESTImageService(baseURL, apiKey string, timeout time.Duration) generationout.ImageService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTImageService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type initImageResponse struct {
	UploadInitImage struct {
		ID     string `json:"id"`
		URL    string `json:"url"`
		Fields string `json:"fields"`
	} `json:"uploadInitImage"`
}

type controlnet struct {
	InitImageID    string `json:"initImageId"`
	InitImageType  string `json:"initImageType"`
	PreprocessorID int    `json:"preprocessorId"`
	StrengthType   string `json:"strengthType"`
}

type generationRequest struct {
	Prompt      string       `json:"prompt"`
	ModelID     string       `json:"modelId,omitempty"`
	NumImages   int          `json:"num_images"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Alchemy     bool         `json:"alchemy"`
	Controlnets []controlnet `json:"controlnets,omitempty"`
}

type generationStarted struct {
	SDGenerationJob struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

type generationLookup struct {
	GenerationsByPK *struct {
		Status          string `json:"status"`
		GeneratedImages []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

func (s *RESTImageService) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	ext := extensionFor(contentType)
	var init initImageResponse
	if err := s.doJSON(ctx, http.MethodPost, "/init-image", map[string]string{"extension": ext}, &init); err != nil {
		return "", fmt.Errorf("init upload: %w", err)
	}
	up := init.UploadInitImage
	if up.ID == "" || up.URL == "" {
		return "", fmt.Errorf("init upload: incomplete response")
	}
	fields := map[string]string{}
	if up.Fields != "" {
		if err := json.Unmarshal([]byte(up.Fields), &fields); err != nil {
			return "", fmt.Errorf("decode upload fields: %w", err)
		}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("write upload field: %w", err)
		}
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="capture.%s"`, ext))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create upload part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write upload part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.URL, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("upload image: %s", statusError(resp))
	}
	return up.ID, nil
}

func (s *RESTImageService) StartGeneration(ctx context.Context, req domain.GenerateRequest) (string, error) {
	payload := generationRequest{
		Prompt:    req.Prompt,
		ModelID:   req.ModelID,
		NumImages: req.ImageCount,
		Width:     req.Width,
		Height:    req.Height,
		Alchemy:   true,
	}
	for _, ref := range req.References {
		payload.Controlnets = append(payload.Controlnets, toControlnet(ref))
	}
	var started generationStarted
	if err := s.doJSON(ctx, http.MethodPost, "/generations", payload, &started); err != nil {
		return "", fmt.Errorf("start generation: %w", err)
	}
	return started.SDGenerationJob.GenerationID, nil
}

func (s *RESTImageService) GetGeneration(ctx context.Context, generationID string) (domain.RemoteGeneration, error) {
	var lookup generationLookup
	if err := s.doJSON(ctx, http.MethodGet, "/generations/"+generationID, nil, &lookup); err != nil {
		return domain.RemoteGeneration{}, fmt.Errorf("get generation: %w", err)
	}
	if lookup.GenerationsByPK == nil {
		return domain.RemoteGeneration{}, fmt.Errorf("get generation: %s not found", generationID)
	}
	g := lookup.GenerationsByPK
	out := domain.RemoteGeneration{}
	switch strings.ToUpper(g.Status) {
	case "COMPLETE":
		out.State = domain.JobComplete
	case "FAILED":
		out.State = domain.JobFailed
		out.Reason = "remote generation failed"
	default:
		out.State = domain.JobPending
	}
	for _, img := range g.GeneratedImages {
		out.Images = append(out.Images, domain.RemoteImage{ID: img.ID, URL: img.URL})
	}
	return out, nil
}

func (s *RESTImageService) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", statusError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func toControlnet(ref domain.Reference) controlnet {
	c := controlnet{InitImageID: ref.ImageID, InitImageType: "UPLOADED"}
	if ref.Kind == domain.KindGenerated {
		c.InitImageType = "GENERATED"
	}
	switch ref.Role {
	case domain.RoleStyle:
		c.PreprocessorID = preprocessorStyle
		c.StrengthType = "High"
	default:
		c.PreprocessorID = preprocessorCharacter
		c.StrengthType = "Mid"
	}
	return c
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "jpg"
	}
	switch mediaType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

func statusError(resp *http.Response) string {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		return resp.Status
	}
	return resp.Status + ": " + text
}
