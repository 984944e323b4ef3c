package archive

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeS3 struct {
	puts chan *s3.PutObjectInput
	body chan []byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.puts <- in
	f.body <- b
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	at := time.Date(2025, 3, 7, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "webhooks/sepay/2025/03/07/92704.json", Key("SePay", "92704", at))
	assert.Equal(t, "webhooks/payos/2025/03/07/a_b.json", Key("payos", "a/b", at))
	assert.Equal(t, "webhooks/payos/2025/03/07/unknown.json", Key("payos", "", at))
}

func TestStoreAsync_UploadsCopyOfPayload(t *testing.T) {
	d, err := notify.New(2, zap.NewNop())
	require.NoError(t, err)
	defer d.Close(context.Background())

	fake := &fakeS3{puts: make(chan *s3.PutObjectInput, 1), body: make(chan []byte, 1)}
	a := New(fake, "foodfund-webhooks", d, zap.NewNop())

	payload := []byte(`{"id":92704}`)
	a.StoreAsync(context.Background(), "sepay", "92704", time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), payload)
	payload[0] = 'X'

	select {
	case in := <-fake.puts:
		assert.Equal(t, "foodfund-webhooks", aws.ToString(in.Bucket))
		assert.Equal(t, "webhooks/sepay/2025/03/07/92704.json", aws.ToString(in.Key))
		assert.Equal(t, `{"id":92704}`, string(<-fake.body))
	case <-time.After(2 * time.Second):
		t.Fatal("payload not archived")
	}
}

func TestNilArchiverIsNoop(t *testing.T) {
	var a *Archiver
	assert.NoError(t, a.Store(context.Background(), "sepay", "1", time.Now(), nil))
	a.StoreAsync(context.Background(), "sepay", "1", time.Now(), nil)
}
