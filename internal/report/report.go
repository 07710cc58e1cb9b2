package report

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
	"github.com/John-Robertt/ibdbwatch/internal/infra/fsx"
)

// TimeLayout 是 section 标题里的时间格式（本地时间）。
const TimeLayout = "2006-01-02 15:04:05"

const scaffold = `<!DOCTYPE html>
<html>
<head>
<meta charset='utf-8'>
<title>IBDB Broadway Dashboard</title>
<style>body { font-family: Arial, sans-serif; margin: 20px; }table { border-collapse: collapse; width: 100%; margin-bottom: 30px; }th, td { border: 1px solid #ddd; padding: 8px; }th { background-color: #f2f2f2; }
</style>
</head>
<body>
<h1>IBDB Broadway Scraper Dashboard</h1>
</body>
</html>`

var sectionTmpl = template.Must(template.New("section").Parse(`<h2>New Shows Detected at {{.At}}</h2>
<table>
<thead><tr><th>Title</th><th>Date</th><th>Theatre</th><th>Show Type</th><th>Detail Link</th></tr></thead>
<tbody>
{{range .Shows}}<tr><td>{{.Title}}</td><td>{{.Date}}</td><td>{{.Theatre}}</td><td>{{.ShowType}}</td><td><a href="{{.DetailLink}}" target="_blank">Link</a></td></tr>
{{end}}</tbody>
</table>
`))

// Sink 把新发现的剧目追加到累积的 HTML 报告中。
//
// 约束：
// - 只追加：新 section 插入到最后一个 </body> 之前，已有内容原样保留
// - 报告不存在时先生成最小骨架
// - 写入走临时文件 + rename，失败时旧报告不变
type Sink struct {
	Path string
}

func New(path string) Sink {
	return Sink{Path: filepath.Clean(strings.TrimSpace(path))}
}

// Append 写入一个带时间戳的 section；shows 为空时不做任何事。
func (s Sink) Append(at time.Time, shows []domain.ShowRecord) error {
	if len(shows) == 0 {
		return nil
	}

	cur, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		cur = []byte(scaffold)
	}

	section, err := RenderSection(at, shows)
	if err != nil {
		return err
	}

	pos := bytes.LastIndex(cur, []byte("</body>"))
	if pos < 0 {
		pos = len(cur)
	}
	out := make([]byte, 0, len(cur)+len(section))
	out = append(out, cur[:pos]...)
	out = append(out, section...)
	out = append(out, cur[pos:]...)

	return fsx.WriteFileAtomicReplace(filepath.Dir(s.Path), filepath.Base(s.Path), out)
}

// RenderSection 渲染单个 section（字段经过 HTML 转义）。
func RenderSection(at time.Time, shows []domain.ShowRecord) ([]byte, error) {
	var buf bytes.Buffer
	err := sectionTmpl.Execute(&buf, struct {
		At    string
		Shows []domain.ShowRecord
	}{
		At:    at.Format(TimeLayout),
		Shows: shows,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
