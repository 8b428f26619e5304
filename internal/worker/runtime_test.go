package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/qbo-converter/internal/config"
	"github.com/dvloznov/qbo-converter/internal/ingest"
	"github.com/dvloznov/qbo-converter/internal/jobs"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/pipeline"
	"github.com/dvloznov/qbo-converter/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Institution: ofx.Institution{
			BankID: "123456789", AccountID: "000111", AccountType: "CHECKING",
			Org: "Test Bank", FID: "1001", IntuitBID: "1001",
		},
		Dates: config.DatesConfig{AssumedYear: 2024},
		Worker: config.WorkerConfig{
			Enabled:      true,
			PollInterval: time.Hour,
			Concurrency:  2,
			QueueSize:    10,
			MaxRetries:   1,
		},
	}
}

func TestRuntimeConvertsUpload(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store := storage.NewMemoryStore("b")

	conv, err := NewConverter(ctx, cfg, store)
	require.NoError(t, err)

	rt := NewRuntime(store, conv, cfg.Worker, zerolog.Nop())
	require.NoError(t, rt.Start(ctx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, rt.Stop(stopCtx))
	}()

	svc := ingest.NewService(store, zerolog.Nop(), ingest.WithNotifier(rt.Worker))
	body := "Date,Ref,Description,Credit,Debit,Balance\n03/01/2024,1,COFFEE,,4.50,\n03/02/2024,2,REFUND,10.00,,\n"
	res, err := svc.Upload(ctx, ingest.UploadRequest{
		Filename:       "March 2024.csv",
		ContentType:    "text/csv",
		Size:           int64(len(body)),
		ProcessingType: ingest.ProcessingBankStatement,
		AccountType:    ingest.AccountBank,
		AccountNumber:  "000111",
		Body:           strings.NewReader(body),
	})
	require.NoError(t, err)

	var status *ingest.Status
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err = svc.Status(ctx, res.FileKey, res.OriginalName)
		require.NoError(t, err)
		if status.Processed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, status.Processed, "upload was not converted")
	assert.Equal(t, ingest.PhaseReady, status.Status)
	assert.Equal(t, "parsed/March_2024.qbo", status.ParsedFileKey)

	// The job record is saved after the converted file is written.
	var done []*jobs.ConvertJob
	require.Eventually(t, func() bool {
		done, err = rt.Jobs.ListJobs(ctx, jobs.JobFilter{SourceKey: res.FileKey, Status: jobs.JobStatusCompleted})
		return err == nil && len(done) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, done[0].Transactions)
}

func TestNewConverterWithoutPDFParsing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("b")
	conv, err := NewConverter(ctx, testConfig(), store)
	require.NoError(t, err)

	key := "incoming/1710000000000_abcd1234.pdf"
	_, err = store.Put(ctx, key, "application/pdf",
		map[string]string{ingest.MetaOriginalName: "s.pdf"}, strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	w := New(conv, &fakePublisher{}, zerolog.Nop())
	err = w.Handle(ctx, &jobs.ConvertJob{SourceKey: key, OriginalName: "s.pdf"})
	require.Error(t, err)
	assert.True(t, jobs.IsPermanent(err))
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedFormat)
}
