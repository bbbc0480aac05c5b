// Package census recovers structured records from the two census
// publications: population by nationality per region, and population by
// age group and sex per region.
//
// Neither publication has a machine-readable schema. Each is scanned row by
// row by a small state machine whose transitions are pure functions of the
// current state and the row under the cursor, so the heuristics can be tested
// without any I/O:
//
//   - [Scanner.ScanNationality] walks federal district, region, marker and
//     nationality rows and produces [NationalityData].
//   - [Scanner.ScanAgeSex] finds region headers confirmed by the
//     "urban and rural" line that follows them and produces [AgeSexData].
//
// Scans never fail outright. Every scan returns its data together with a
// [Report] whose Status tells a missing file, a structurally wrong sheet and a
// scan that skipped suspicious rows apart from a clean result.
//
// [ParseAgeGroup] and [CalculateYearRange] turn raw age labels such as
// "0 - 4" or "85 и более" into the birth-year interval used as the natural
// key of the year dimension.
package census
