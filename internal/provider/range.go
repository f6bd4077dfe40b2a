package provider

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Range is a parsed sheet!A1:C1 address. Rows and columns are 1-based. A zero
// StartRow/StartCol means "from the first", a zero EndRow/EndCol means
// "to the last used".
type Range struct {
	Sheet    string
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

var cellPattern = regexp.MustCompile(`^([A-Za-z]*)([0-9]*)$`)

// ParseRange parses "sheet", "sheet!A1", "sheet!A1:C1", "sheet!A:C" and
// "sheet!A2:C" style addresses.
func ParseRange(ref string) (Range, error) {
	ref = strings.TrimSpace(ref)
	sheet, cells, hasCells := strings.Cut(ref, "!")
	sheet = strings.Trim(sheet, "'")
	if sheet == "" {
		return Range{}, fmt.Errorf("%w: range %q has no sheet name", ErrTransport, ref)
	}

	r := Range{Sheet: sheet}
	if !hasCells || cells == "" {
		return r, nil
	}

	start, end, isSpan := strings.Cut(cells, ":")

	var err error
	if r.StartCol, r.StartRow, err = parseCell(start); err != nil {
		return Range{}, fmt.Errorf("%w: range %q: %w", ErrTransport, ref, err)
	}

	if !isSpan {
		r.EndCol, r.EndRow = r.StartCol, r.StartRow
		return r, nil
	}

	if r.EndCol, r.EndRow, err = parseCell(end); err != nil {
		return Range{}, fmt.Errorf("%w: range %q: %w", ErrTransport, ref, err)
	}

	if r.EndRow != 0 && r.StartRow > r.EndRow {
		return Range{}, fmt.Errorf("%w: range %q ends before it starts", ErrTransport, ref)
	}
	if r.EndCol != 0 && r.StartCol > r.EndCol {
		return Range{}, fmt.Errorf("%w: range %q ends before it starts", ErrTransport, ref)
	}

	return r, nil
}

// String formats r back into sheet!A1:C1 notation.
func (r Range) String() string {
	if r.StartRow == 0 && r.StartCol == 0 && r.EndRow == 0 && r.EndCol == 0 {
		return r.Sheet
	}
	return fmt.Sprintf("%s!%s:%s", r.Sheet, formatCell(r.StartCol, r.StartRow), formatCell(r.EndCol, r.EndRow))
}

// RowRange addresses columns 1..width of a single row.
func RowRange(sheet string, row, width int) string {
	return Range{Sheet: sheet, StartRow: row, StartCol: 1, EndRow: row, EndCol: width}.String()
}

// ColumnIndex converts a column name (A, Z, AA) into its 1-based index.
func ColumnIndex(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("empty column name")
	}

	n := 0
	for _, ch := range strings.ToUpper(name) {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column %q", name)
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n, nil
}

// ColumnName converts a 1-based column index into its letter name.
func ColumnName(index int) string {
	var b []byte
	for index > 0 {
		index--
		b = append([]byte{byte('A' + index%26)}, b...)
		index /= 26
	}
	return string(b)
}

func parseCell(cell string) (col, row int, err error) {
	m := cellPattern.FindStringSubmatch(strings.TrimSpace(cell))
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, 0, fmt.Errorf("invalid cell %q", cell)
	}

	if m[1] != "" {
		if col, err = ColumnIndex(m[1]); err != nil {
			return 0, 0, err
		}
	}

	if m[2] != "" {
		if row, err = strconv.Atoi(m[2]); err != nil || row < 1 {
			return 0, 0, fmt.Errorf("invalid row in %q", cell)
		}
	}

	return col, row, nil
}

func formatCell(col, row int) string {
	var s string
	if col > 0 {
		s = ColumnName(col)
	}
	if row > 0 {
		s += strconv.Itoa(row)
	}
	return s
}
