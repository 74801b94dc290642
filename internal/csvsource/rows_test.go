package csvsource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacsops/dcmmove/internal/uid"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestReadItems(t *testing.T) {
	t.Run("full row set", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"source_study_uid,target_patient_id,issuer_of_patient_id,target_study_uid",
			"1.2.3.1,PAT1,JMS,1.9.1",
			"1.2.3.2,PAT2,JMS,1.9.2",
		}, "\n"))

		items, err := ReadItems(path, Options{})
		require.NoError(t, err)
		require.Len(t, items, 2)

		assert.Equal(t, 1, items[0].Row)
		assert.Equal(t, "1.2.3.1", items[0].SourceStudyUID)
		assert.Equal(t, "PAT1", items[0].TargetPatientID)
		assert.Equal(t, "JMS", items[0].IssuerOfPatientID)
		assert.Equal(t, "1.9.1", items[0].TargetStudyUID)
		assert.Equal(t, 2, items[1].Row)
	})

	t.Run("generates unique valid target UIDs when blank", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"source_study_uid,target_patient_id,issuer_of_patient_id",
			"1.2.3.1,PAT1,JMS",
			"1.2.3.2,PAT2,JMS",
			"1.2.3.3,PAT3,JMS",
		}, "\n"))

		items, err := ReadItems(path, Options{OrgUIDRoot: "1.2.840.99999"})
		require.NoError(t, err)
		require.Len(t, items, 3)

		seen := map[string]bool{}
		for _, item := range items {
			assert.True(t, uid.Valid(item.TargetStudyUID), "generated UID invalid: %s", item.TargetStudyUID)
			assert.True(t, strings.HasPrefix(item.TargetStudyUID, "1.2.840.99999."))
			assert.False(t, seen[item.TargetStudyUID], "duplicate generated UID")
			seen[item.TargetStudyUID] = true
		}
	})

	t.Run("org root too long for UID generation is rejected", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"source_study_uid,target_patient_id,issuer_of_patient_id",
			"1.2.3.1,PAT1,JMS",
		}, "\n"))

		_, err := ReadItems(path, Options{OrgUIDRoot: strings.Repeat("1.", 40)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 1")
		assert.Contains(t, err.Error(), "no room for a suffix")
	})

	t.Run("default issuer fills blank column", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"source_study_uid,target_patient_id,issuer_of_patient_id",
			"1.2.3.1,PAT1,",
			"1.2.3.2,PAT2,OTHER",
		}, "\n"))

		items, err := ReadItems(path, Options{DefaultIssuer: "JMS"})
		require.NoError(t, err)
		assert.Equal(t, "JMS", items[0].IssuerOfPatientID)
		assert.Equal(t, "OTHER", items[1].IssuerOfPatientID)
	})

	t.Run("case-insensitive header", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"Source_Study_UID,TARGET_PATIENT_ID,Issuer_Of_Patient_ID",
			"1.2.3.1,PAT1,JMS",
		}, "\n"))

		items, err := ReadItems(path, Options{})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "1.2.3.1", items[0].SourceStudyUID)
	})

	t.Run("missing issuer without default is rejected", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"source_study_uid,target_patient_id",
			"1.2.3.1,PAT1",
		}, "\n"))

		_, err := ReadItems(path, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "issuer_of_patient_id")
	})

	t.Run("missing required column is rejected", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"target_patient_id,issuer_of_patient_id",
			"PAT1,JMS",
		}, "\n"))

		_, err := ReadItems(path, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source_study_uid")
	})

	t.Run("empty required field is rejected", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"source_study_uid,target_patient_id,issuer_of_patient_id",
			"1.2.3.1,,JMS",
		}, "\n"))

		_, err := ReadItems(path, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "target_patient_id")
	})

	t.Run("empty file has no header", func(t *testing.T) {
		path := writeCSV(t, "")
		_, err := ReadItems(path, Options{})
		assert.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadItems(filepath.Join(t.TempDir(), "nope.csv"), Options{})
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("clean file is ok", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"source_study_uid,target_patient_id,issuer_of_patient_id,target_study_uid",
			"1.2.3.1,PAT1,JMS,1.9.1",
			"1.2.3.2,PAT2,JMS,",
		}, "\n"))

		report, err := Validate(path, true, "")
		require.NoError(t, err)
		assert.True(t, report.OK)
		assert.Equal(t, 2, report.Rows)
		assert.Empty(t, report.Problems)
	})

	t.Run("collects problems per line", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"source_study_uid,target_patient_id,target_study_uid",
			"1.2.3.1,PAT1,1.9.1",
			"1.2.3.1,PAT2,1.9.1",
			"not-a-uid,,",
		}, "\n"))

		report, err := Validate(path, false, "")
		require.NoError(t, err)
		assert.False(t, report.OK)
		assert.Equal(t, 3, report.Rows)

		joined := strings.Join(report.Problems, "\n")
		assert.Contains(t, joined, "line 3: duplicate source_study_uid 1.2.3.1")
		assert.Contains(t, joined, "line 3: duplicate target_study_uid 1.9.1")
		assert.Contains(t, joined, "line 4: source_study_uid looks invalid: not-a-uid")
		assert.Contains(t, joined, "line 4: empty target_patient_id")
	})

	t.Run("issuer requirement honors default", func(t *testing.T) {
		path := writeCSV(t, strings.Join([]string{
			"source_study_uid,target_patient_id",
			"1.2.3.1,PAT1",
		}, "\n"))

		report, err := Validate(path, true, "")
		require.NoError(t, err)
		assert.False(t, report.OK)

		report, err = Validate(path, true, "JMS")
		require.NoError(t, err)
		assert.True(t, report.OK)
	})

	t.Run("missing columns reported", func(t *testing.T) {
		path := writeCSV(t, "some_other_column\nvalue")

		report, err := Validate(path, false, "")
		require.NoError(t, err)
		assert.False(t, report.OK)
		joined := strings.Join(report.Problems, "\n")
		assert.Contains(t, joined, "missing required column: source_study_uid")
		assert.Contains(t, joined, "missing required column: target_patient_id")
	})
}
