package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

type fakeUploader struct {
	uploadResult  *uploader.UploadResult
	uploadErr     error
	destroyResult *uploader.DestroyResult
	destroyErr    error

	uploadedFile  interface{}
	uploadParams  uploader.UploadParams
	destroyParams []uploader.DestroyParams
}

func (f *fakeUploader) Upload(
	_ context.Context,
	file interface{},
	params uploader.UploadParams,
) (*uploader.UploadResult, error) {
	f.uploadedFile = file
	f.uploadParams = params
	return f.uploadResult, f.uploadErr
}

func (f *fakeUploader) Destroy(_ context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyParams = append(f.destroyParams, params)
	return f.destroyResult, f.destroyErr
}

func TestCloudinaryStorage_Put(t *testing.T) {
	// Arrange
	fake := &fakeUploader{uploadResult: &uploader.UploadResult{
		PublicID:     "seguridad_domestica/abc",
		SecureURL:    "https://res.cloudinary.com/demo/video/upload/abc.mp3",
		ResourceType: "video",
		Format:       "mp3",
	}}
	c := newCloudinaryStorage(fake, "")

	// Act
	obj, err := c.Put(context.Background(), Upload{Body: strings.NewReader("id3")})

	// Assert
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.uploadParams.Folder != DefaultCloudinaryFolder || fake.uploadParams.ResourceType != "auto" {
		t.Errorf("params = %+v", fake.uploadParams)
	}
	if obj.Handle != "seguridad_domestica/abc" || obj.URL != fake.uploadResult.SecureURL {
		t.Errorf("Put() = %+v", obj)
	}
	if got := Classify(obj.ContentType, obj.Format); got != model.KindAudio {
		t.Errorf("Classify(reported) = %s, want audio", got)
	}
}

func TestCloudinaryStorage_PutURLSendsLink(t *testing.T) {
	fake := &fakeUploader{uploadResult: &uploader.UploadResult{SecureURL: "https://x", PublicID: "p"}}
	c := newCloudinaryStorage(fake, "custom")

	if _, err := c.PutURL(context.Background(), "https://example.com/a.jpg", "image/jpeg"); err != nil {
		t.Fatalf("PutURL() error = %v", err)
	}

	if fake.uploadedFile != "https://example.com/a.jpg" {
		t.Errorf("uploaded file = %v, want the URL", fake.uploadedFile)
	}
	if fake.uploadParams.Folder != "custom" {
		t.Errorf("Folder = %s, want custom", fake.uploadParams.Folder)
	}
}

func TestCloudinaryStorage_PutErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeUploader
	}{
		{"transport error", &fakeUploader{uploadErr: errors.New("dial tcp: timeout")}},
		{"api error", &fakeUploader{uploadResult: &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid image file"}}}},
		{"empty response", &fakeUploader{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCloudinaryStorage(tt.fake, "")

			_, err := c.Put(context.Background(), Upload{Body: strings.NewReader("x")})

			if !errors.Is(err, ErrRemoteStorage) {
				t.Errorf("Put() error = %v, want ErrRemoteStorage", err)
			}
		})
	}
}

func TestCloudinaryStorage_Release(t *testing.T) {
	tests := []struct {
		name         string
		ref          Ref
		result       *uploader.DestroyResult
		wantCalls    int
		wantResource string
		wantErr      bool
	}{
		{
			name:         "image",
			ref:          Ref{Handle: "a", Kind: model.KindImage},
			result:       &uploader.DestroyResult{Result: "ok"},
			wantCalls:    1,
			wantResource: "image",
		},
		{
			name:         "video",
			ref:          Ref{Handle: "b", Kind: model.KindVideo},
			result:       &uploader.DestroyResult{Result: "ok"},
			wantCalls:    1,
			wantResource: "video",
		},
		{
			name:         "audio lives under video",
			ref:          Ref{Handle: "c", Kind: model.KindAudio},
			result:       &uploader.DestroyResult{Result: "not found"},
			wantCalls:    1,
			wantResource: "video",
		},
		{
			name:      "no handle",
			ref:       Ref{URL: "https://example.com/a.jpg"},
			wantCalls: 0,
		},
		{
			name:         "api error",
			ref:          Ref{Handle: "d", Kind: model.KindImage},
			result:       &uploader.DestroyResult{Error: api.ErrorResp{Message: "boom"}},
			wantCalls:    1,
			wantResource: "image",
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeUploader{destroyResult: tt.result}
			c := newCloudinaryStorage(fake, "")

			err := c.Release(context.Background(), tt.ref)

			if (err != nil) != tt.wantErr {
				t.Errorf("Release() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(fake.destroyParams) != tt.wantCalls {
				t.Fatalf("destroy calls = %d, want %d", len(fake.destroyParams), tt.wantCalls)
			}
			if tt.wantCalls > 0 {
				p := fake.destroyParams[0]
				if p.PublicID != tt.ref.Handle || p.ResourceType != tt.wantResource {
					t.Errorf("destroy params = %+v", p)
				}
			}
		})
	}
}

func TestNewCloudinaryStorage_RequiresCredentials(t *testing.T) {
	if _, err := NewCloudinaryStorage(CloudinaryConfig{}); err == nil {
		t.Error("NewCloudinaryStorage() without credentials should fail")
	}
}

func TestNewCloudinaryStorage_FromParams(t *testing.T) {
	c, err := NewCloudinaryStorage(CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret"})
	if err != nil {
		t.Fatalf("NewCloudinaryStorage() error = %v", err)
	}
	if c.Name() != BackendCloudinary || c.folder != DefaultCloudinaryFolder {
		t.Errorf("storage = %+v", c)
	}
}
