package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
	"github.com/John-Robertt/ibdbwatch/internal/infra/fsx"
)

// Header 是主数据集文件的列（顺序固定）。
var Header = []string{"Title", "Date", "Theatre", "Image URL", "Show Type", "Detail Link"}

// FormatError 表示主数据集文件存在但结构不合法（例如缺列）。
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("主数据集格式错误：%q 第 %d 行：%s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("主数据集格式错误：%q：%s", e.Path, e.Msg)
}

// Store 是主数据集（CSV）的读写入口。
//
// 约束：
// - Load：文件不存在 => 空数据集（首次 run），不是错误
// - Save：整体重写，临时文件 + rename 原子替换；失败时旧文件保持不变
type Store struct {
	Path string
}

func New(path string) Store {
	return Store{Path: filepath.Clean(strings.TrimSpace(path))}
}

// Load 读取整个数据集；exists 表示文件是否存在。
func (s Store) Load() (recs []domain.ShowRecord, exists bool, err error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.ShowRecord{}, false, nil
		}
		return nil, false, err
	}
	recs, err = Decode(bytes.NewReader(b), s.Path)
	if err != nil {
		return nil, true, err
	}
	return recs, true, nil
}

// Save 把 recs 整体写入（覆盖）。
func (s Store) Save(recs []domain.ShowRecord) error {
	var buf bytes.Buffer
	if err := Encode(&buf, recs); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(s.Path), filepath.Base(s.Path), buf.Bytes())
}

// Encode 写出表头 + 每条记录一行（UTF-8，无 BOM）。
func Encode(w io.Writer, recs []domain.ShowRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write([]string{r.Title, r.Date, r.Theatre, r.ImageURL, r.ShowType, r.DetailLink}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode 按表头列名取值（列顺序可不同，但必须包含全部列）。
// 空的 Detail Link 行没有身份键，直接丢弃。
func Decode(r io.Reader, path string) ([]domain.ShowRecord, error) {
	cr := csv.NewReader(stripBOM(r))
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []domain.ShowRecord{}, nil
		}
		return nil, &FormatError{Path: path, Line: 1, Msg: err.Error()}
	}

	idx := make(map[string]int, len(head))
	for i, h := range head {
		idx[strings.TrimSpace(h)] = i
	}
	for _, h := range Header {
		if _, ok := idx[h]; !ok {
			return nil, &FormatError{Path: path, Line: 1, Msg: fmt.Sprintf("缺少列 %q", h)}
		}
	}

	out := make([]domain.ShowRecord, 0, 256)
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &FormatError{Path: path, Line: line, Msg: err.Error()}
		}
		get := func(col string) string {
			i := idx[col]
			if i >= len(row) {
				return ""
			}
			return row[i]
		}
		rec := domain.ShowRecord{
			Title:      get("Title"),
			Date:       get("Date"),
			Theatre:    get("Theatre"),
			ImageURL:   get("Image URL"),
			ShowType:   get("Show Type"),
			DetailLink: get("Detail Link"),
		}.Normalize()
		if rec.DetailLink == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	c, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if c != '\uFEFF' {
		_ = br.UnreadRune()
	}
	return br
}
