package logs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// MinioConfig configures the object storage backed Archiver.
type MinioConfig struct {
	Endpoint  string `json:"endpoint" env:"LOGS_MINIO_ENDPOINT"`
	AccessKey string `json:"access_key" env:"LOGS_MINIO_ACCESS_KEY"`
	SecretKey string `json:"secret_key" env:"LOGS_MINIO_SECRET_KEY"`
	Bucket    string `json:"bucket" env:"LOGS_MINIO_BUCKET"`
	UseSSL    bool   `json:"use_ssl" env:"LOGS_MINIO_SSL"`
}

// NewMinio returns an Archiver storing logs as objects in a bucket,
// creating the bucket if missing.
func NewMinio(ctx context.Context, conf MinioConfig) (Archiver, error) {
	cli, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create minio client for endpoint %s", conf.Endpoint)
	}
	exists, err := cli.BucketExists(ctx, conf.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot check bucket %s", conf.Bucket)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, conf.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "cannot create bucket %s", conf.Bucket)
		}
	}
	return &objectstore{cli: cli, bucket: conf.Bucket}, nil
}

type objectstore struct {
	cli    *minio.Client
	bucket string
}

func (a *objectstore) Archive(ctx context.Context, runID, task string, step int, log string) error {
	name := objectName(runID, task, step)
	_, err := a.cli.PutObject(ctx, a.bucket, name, bytes.NewReader([]byte(log)), int64(len(log)), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return errors.Wrapf(err, "cannot archive log %s", name)
	}
	return nil
}

func (a *objectstore) Fetch(ctx context.Context, runID, task string, step int) (string, error) {
	name := objectName(runID, task, step)
	obj, err := a.cli.GetObject(ctx, a.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "cannot fetch log %s", name)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return "", api.NotFoundError(fmt.Sprintf("log of step %d of task %s in run %s", step, task, runID))
		}
		return "", errors.Wrapf(err, "cannot read log %s", name)
	}
	return string(data), nil
}

func objectName(runID, task string, step int) string {
	return fmt.Sprintf("%s/%s/%d.log", runID, task, step)
}
