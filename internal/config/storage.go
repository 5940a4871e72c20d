package config

import (
	"fmt"
)

// ObjectStorage selects where "pack build --publish" uploads the artifact.
// Exactly one backend is set.
type ObjectStorage struct {
	AmazonS3          *AmazonS3          `json:"aws,omitempty"`
	GCPCloudStorage   *GCPCloudStorage   `json:"gcp,omitempty"`
	AzureBlobStorage  *AzureBlobStorage  `json:"azure,omitempty"`
	FileSystemStorage *FileSystemStorage `json:"filesystem,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

type backend interface {
	credentials() *SecretRef
	validate() error
}

func (o *ObjectStorage) backends() []backend {
	var bs []backend
	if o.AmazonS3 != nil {
		bs = append(bs, o.AmazonS3)
	}
	if o.GCPCloudStorage != nil {
		bs = append(bs, o.GCPCloudStorage)
	}
	if o.AzureBlobStorage != nil {
		bs = append(bs, o.AzureBlobStorage)
	}
	if o.FileSystemStorage != nil {
		bs = append(bs, o.FileSystemStorage)
	}
	return bs
}

func (o *ObjectStorage) validate() error {
	bs := o.backends()
	if len(bs) != 1 {
		return fmt.Errorf("storage: exactly one of aws, gcp, azure or filesystem is required, got %d", len(bs))
	}
	return bs[0].validate()
}

func (o *ObjectStorage) Equal(other *ObjectStorage) bool {
	return fastEqual(o, other, func(o, other *ObjectStorage) bool {
		return o.AmazonS3.Equal(other.AmazonS3) &&
			o.GCPCloudStorage.Equal(other.GCPCloudStorage) &&
			o.AzureBlobStorage.Equal(other.AzureBlobStorage) &&
			o.FileSystemStorage.Equal(other.FileSystemStorage)
	})
}

// AmazonS3 uploads to an S3 bucket or an S3-compatible endpoint. Without
// credentials the SDK's default chain is used.
type AmazonS3 struct {
	Bucket      string     `json:"bucket"`
	Key         string     `json:"key"`
	Region      string     `json:"region,omitempty"`
	Credentials *SecretRef `json:"credentials,omitempty"`
	URL         string     `json:"url,omitempty"` // path-style addressing
}

func (a *AmazonS3) credentials() *SecretRef { return a.Credentials }

func (a *AmazonS3) validate() error {
	return required("amazon s3", "bucket", a.Bucket, "key", a.Key)
}

func (a *AmazonS3) Equal(other *AmazonS3) bool {
	return fastEqual(a, other, func(a, other *AmazonS3) bool {
		x, y := *a, *other
		x.Credentials, y.Credentials = nil, nil
		return x == y && a.Credentials.Equal(other.Credentials)
	})
}

// GCPCloudStorage uploads to a Google Cloud Storage bucket. Without
// credentials, application default credentials are used.
type GCPCloudStorage struct {
	Bucket      string     `json:"bucket"`
	Object      string     `json:"object"`
	Credentials *SecretRef `json:"credentials,omitempty"`
	URL         string     `json:"url,omitempty"` // emulator endpoint
}

func (g *GCPCloudStorage) credentials() *SecretRef { return g.Credentials }

func (g *GCPCloudStorage) validate() error {
	return required("gcp cloud storage", "bucket", g.Bucket, "object", g.Object)
}

func (g *GCPCloudStorage) Equal(other *GCPCloudStorage) bool {
	return fastEqual(g, other, func(g, other *GCPCloudStorage) bool {
		x, y := *g, *other
		x.Credentials, y.Credentials = nil, nil
		return x == y && g.Credentials.Equal(other.Credentials)
	})
}

// AzureBlobStorage uploads to a blob in an Azure storage container. Without
// credentials, DefaultAzureCredential is used.
type AzureBlobStorage struct {
	AccountURL  string     `json:"account_url"`
	Container   string     `json:"container"`
	Path        string     `json:"path"`
	Credentials *SecretRef `json:"credentials,omitempty"`
}

func (a *AzureBlobStorage) credentials() *SecretRef { return a.Credentials }

func (a *AzureBlobStorage) validate() error {
	return required("azure blob storage", "account URL", a.AccountURL, "container", a.Container, "path", a.Path)
}

func (a *AzureBlobStorage) Equal(other *AzureBlobStorage) bool {
	return fastEqual(a, other, func(a, other *AzureBlobStorage) bool {
		x, y := *a, *other
		x.Credentials, y.Credentials = nil, nil
		return x == y && a.Credentials.Equal(other.Credentials)
	})
}

// FileSystemStorage copies the artifact to a local path.
type FileSystemStorage struct {
	Path string `json:"path"`
}

func (*FileSystemStorage) credentials() *SecretRef { return nil }

func (f *FileSystemStorage) validate() error {
	return required("filesystem storage", "path", f.Path)
}

func (f *FileSystemStorage) Equal(other *FileSystemStorage) bool {
	return fastEqual(f, other, func(f, other *FileSystemStorage) bool {
		return *f == *other
	})
}

// required takes field name and value pairs and reports the first empty one.
func required(kind string, fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			return fmt.Errorf("%s %s is required", kind, fields[i])
		}
	}
	return nil
}
