package output

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banton/medical-patients-sub001/internal/models"
	"github.com/banton/medical-patients-sub001/pkg/crypto"
)

func testCohort() []*models.Patient {
	injured := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	return []*models.Patient{
		{
			ID: "P-000001", InjuryType: models.InjuryBattle, Severity: 7,
			Band: models.BandSevere, BodyPart: "left_leg", TrueCondition: "125689001",
			InitialHealth: 35, CurrentHealth: 0, Triage: models.TriageImmediate,
			State: models.StateDied, Location: "POI", InjuredAt: injured,
		},
		{
			ID: "P-000002", InjuryType: models.InjuryNonBattle, Severity: 3,
			Band: models.BandMild, BodyPart: "right_arm", TrueCondition: "58150001",
			InitialHealth: 80, CurrentHealth: 100, Triage: models.TriageMinimal,
			State: models.StateDischarged, Location: "Role2", InjuredAt: injured,
			Treatments: []models.AppliedTreatment{{Name: "splinting", AppliedAt: injured}},
		},
	}
}

func TestWriteAll(t *testing.T) {
	t.Run("json and csv", func(t *testing.T) {
		dir := t.TempDir()
		files, err := WriteAll(testCohort(), dir, Options{Formats: []string{"json", "csv"}})
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, filepath.Join(dir, "patients.json"), files[0])
		assert.Equal(t, filepath.Join(dir, "patients.csv"), files[1])

		raw, err := os.ReadFile(files[0])
		require.NoError(t, err)
		var decoded []models.Patient
		require.NoError(t, json.Unmarshal(raw, &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "P-000001", decoded[0].ID)
		assert.Equal(t, models.StateDied, decoded[0].State)

		f, err := os.Open(files[1])
		require.NoError(t, err)
		defer f.Close()
		rows, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, csvHeader, rows[0])
		assert.Equal(t, "P-000002", rows[2][0])
		assert.Equal(t, "1", rows[2][12], "treatment count column")
	})

	t.Run("concurrent mode writes the same files", func(t *testing.T) {
		dir := t.TempDir()
		files, err := WriteAll(testCohort(), dir, Options{
			Formats:    []string{"json", "csv"},
			Concurrent: true,
		})
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, filepath.Join(dir, "patients.json"), files[0])
		assert.Equal(t, filepath.Join(dir, "patients.csv"), files[1])
		for _, f := range files {
			info, err := os.Stat(f)
			require.NoError(t, err)
			assert.NotZero(t, info.Size())
		}
	})

	t.Run("default format is json", func(t *testing.T) {
		files, err := WriteAll(testCohort(), t.TempDir(), Options{})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "patients.json", filepath.Base(files[0]))
	})

	t.Run("unknown format fails", func(t *testing.T) {
		_, err := WriteAll(testCohort(), t.TempDir(), Options{Formats: []string{"xml"}})
		assert.Error(t, err)
	})

	t.Run("gzip roundtrip", func(t *testing.T) {
		files, err := WriteAll(testCohort(), t.TempDir(), Options{Formats: []string{"json"}, Compress: true})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "patients.json.gz", filepath.Base(files[0]))

		f, err := os.Open(files[0])
		require.NoError(t, err)
		defer f.Close()
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		raw, err := io.ReadAll(gz)
		require.NoError(t, err)

		var decoded []models.Patient
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Len(t, decoded, 2)
	})

	t.Run("encrypted gzip roundtrip", func(t *testing.T) {
		files, err := WriteAll(testCohort(), t.TempDir(), Options{
			Formats:         []string{"json"},
			Compress:        true,
			EncryptPassword: "hunter2hunter2",
		})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "patients.json.gz.enc", filepath.Base(files[0]))

		sealed, err := os.ReadFile(files[0])
		require.NoError(t, err)

		enc, err := crypto.NewEncryptor("hunter2hunter2")
		require.NoError(t, err)
		compressed, err := enc.Decrypt(sealed)
		require.NoError(t, err)

		gz, err := gzip.NewReader(bytes.NewReader(compressed))
		require.NoError(t, err)
		raw, err := io.ReadAll(gz)
		require.NoError(t, err)

		var decoded []models.Patient
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Len(t, decoded, 2)
	})
}
