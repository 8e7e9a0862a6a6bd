package dataset

import (
	"context"
	"io"
	"os"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"

	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

// LoadCSV reads a CSV table with a header row. Every column is loaded as strings;
// typing happens in Prepare against the declared column kinds.
func LoadCSV(ctx context.Context, r io.ReadSeeker) (*dataframe.DataFrame, error) {
	frame, err := imports.LoadFromCSV(ctx, r, imports.CSVLoadOptions{
		TrimLeadingSpace: true,
	})
	if err != nil {
		return nil, mlerrors.Wrap(err, "load csv")
	}
	return frame, nil
}

// LoadCSVFile opens path and reads it with LoadCSV.
func LoadCSVFile(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mlerrors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return LoadCSV(ctx, f)
}
