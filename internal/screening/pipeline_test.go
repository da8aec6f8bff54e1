package screening_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panval/internal/screening"
	"panval/pkg/testutil"
)

// runPipeline chains the pure stages the way the service does.
func runPipeline(t *testing.T, raw []*string) (screening.Results, screening.Summary) {
	t.Helper()
	cleaned := screening.Clean(raw)
	results := screening.Classify(cleaned)
	summary, err := screening.Summarize(len(raw), results)
	require.NoError(t, err)
	return results, summary
}

func TestPipelineScenarios(t *testing.T) {
	testutil.Given(t, "mixed case duplicates with a null and a blank", func(t *testing.T) {
		raw := []*string{screening.Raw("abcde1234f"), screening.Raw(" ABCDE1234F "), nil, screening.Raw("")}

		testutil.When(t, "the pipeline runs", func(t *testing.T) {
			results, summary := runPipeline(t, raw)

			testutil.Then(t, "one identifier survives and is invalid as a sequence", func(t *testing.T) {
				assert.Equal(t, map[string]screening.Status{"ABCDE1234F": screening.StatusInvalid}, results.ByIdentifier())
				assert.Contains(t, results[0].Violations, screening.ViolationSequentialPrefix)
			})

			testutil.Then(t, "three raw records count as missing", func(t *testing.T) {
				assert.Equal(t, screening.Summary{
					TotalProcessed:      4,
					TotalValid:          0,
					TotalInvalid:        1,
					MissingOrIncomplete: 3,
				}, summary)
			})
		})
	})

	scenarios := []struct {
		given     string
		input     string
		status    screening.Status
		violation screening.Violation
	}{
		{given: "an identifier with repeated neighbours", input: "AABCD1234Z", status: screening.StatusInvalid, violation: screening.ViolationAdjacentRepetition},
		{given: "a well formed identifier", input: "KXRPT2045M", status: screening.StatusValid},
		{given: "an identifier of the wrong length", input: "AB1234", status: screening.StatusInvalid, violation: screening.ViolationLength},
		{given: "an alphabetical prefix", input: "ABCDE1234E", status: screening.StatusInvalid, violation: screening.ViolationSequentialPrefix},
		{given: "a numeric run in the digit block", input: "KXRPT1234M", status: screening.StatusInvalid, violation: screening.ViolationSequentialDigits},
	}

	for _, sc := range scenarios {
		testutil.Given(t, sc.given, func(t *testing.T) {
			testutil.When(t, "the pipeline runs", func(t *testing.T) {
				results, summary := runPipeline(t, screening.RawRecords(sc.input))

				testutil.Then(t, "it is classified as "+sc.status.String(), func(t *testing.T) {
					require.Len(t, results, 1)
					assert.Equal(t, sc.status, results[0].Status)
					if sc.violation != "" {
						assert.Contains(t, results[0].Violations, sc.violation)
					} else {
						assert.Empty(t, results[0].Violations)
					}
					assert.Equal(t, 1, summary.TotalProcessed)
					assert.Zero(t, summary.MissingOrIncomplete)
				})
			})
		})
	}
}
