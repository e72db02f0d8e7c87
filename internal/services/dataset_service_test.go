package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrivoltaic-dashboard/internal/models"
)

func TestDatasetService_Load(t *testing.T) {
	ds := loadFixture(t)

	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 5, ds.Agrivoltaic.Len())
	assert.Equal(t, []string{"GHI_Open_Field (W/m2)", "Temperature_Open_Field (C)"}, ds.OpenField.Columns)
	assert.NotEqual(t, ds.OpenField.Version, ds.Agrivoltaic.Version)
}

func TestDatasetService_LoadErrors(t *testing.T) {
	misalignedTime := strings.Replace(agrivoltaicCSV, "2024-06-02 06:00:00", "2024-06-02 07:00:00", 1)
	shortTable := strings.Join(strings.Split(agrivoltaicCSV, "\n")[:4], "\n") + "\n"
	renamedColumn := strings.Replace(openFieldCSV, "Temperature_Open_Field (C)", "Temp", 1)

	tests := []struct {
		name        string
		openField   string
		agrivoltaic string
		checkErr    func(t *testing.T, err error)
	}{
		{
			name:        "missing open field file",
			openField:   "",
			agrivoltaic: agrivoltaicCSV,
			checkErr: func(t *testing.T, err error) {
				assert.True(t, models.IsNotFound(err, models.ResourceObservationFile))
			},
		},
		{
			name:        "missing agrivoltaic file",
			openField:   openFieldCSV,
			agrivoltaic: "",
			checkErr: func(t *testing.T, err error) {
				assert.True(t, models.IsNotFound(err, models.ResourceObservationFile))
			},
		},
		{
			name:        "row counts differ",
			openField:   openFieldCSV,
			agrivoltaic: shortTable,
			checkErr: func(t *testing.T, err error) {
				var ae *models.AlignmentError
				require.True(t, errors.As(err, &ae))
				assert.Equal(t, -1, ae.Row)
			},
		},
		{
			name:        "timestamps differ",
			openField:   openFieldCSV,
			agrivoltaic: misalignedTime,
			checkErr: func(t *testing.T, err error) {
				var ae *models.AlignmentError
				require.True(t, errors.As(err, &ae))
				assert.Equal(t, 2, ae.Row)
			},
		},
		{
			name:        "required column missing",
			openField:   renamedColumn,
			agrivoltaic: agrivoltaicCSV,
			checkErr: func(t *testing.T, err error) {
				var ve *models.ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, "Temperature_Open_Field (C)", ve.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestDatasetService(t, writeSites(t, tt.openField, tt.agrivoltaic))
			ds, err := svc.Load(context.Background())
			require.Error(t, err)
			assert.Nil(t, ds, "no partial dataset")
			tt.checkErr(t, err)
		})
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(loadFixture(t))

	assert.Equal(t, 5, summary.RowCount)
	assert.True(t, time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC).Equal(summary.FirstTime))
	assert.Equal(t, "2024-06-01..2024-06-03", summary.Bounds.String())
	require.Len(t, summary.Sites, 2)
	assert.Equal(t, models.SiteOpenField, summary.Sites[0].Site)
	assert.Equal(t, "Agrivoltaic", summary.Sites[1].Label)
}
