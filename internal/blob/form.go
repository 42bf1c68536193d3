package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// FormUploader posts files to an unsigned upload endpoint as multipart form
// data with an upload preset, and reads the hosted URL from the JSON field
// secure_url.
type FormUploader struct {
	endpoint string
	preset   string
	client   *http.Client
}

func NewFormUploader(endpoint, preset string, client *http.Client) *FormUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &FormUploader{endpoint: endpoint, preset: preset, client: client}
}

type formResponse struct {
	SecureURL string `json:"secure_url"`
}

func (u *FormUploader) Upload(ctx context.Context, f File) (string, error) {
	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(mw, u.preset, f))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		return "", uploadError(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", uploadError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", uploadError(fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b)))
	}

	var out formResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", uploadError(err)
	}
	if out.SecureURL == "" {
		return "", uploadError(errors.New("response has no secure_url"))
	}
	return out.SecureURL, nil
}

func writeForm(mw *multipart.Writer, preset string, f File) error {
	if err := mw.WriteField("upload_preset", preset); err != nil {
		return err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return err
	}
	return mw.Close()
}
