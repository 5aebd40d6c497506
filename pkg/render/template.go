package render

import (
	"bytes"
	"context"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/namix-io/hierarchy-engine/pkg/manifest"
	"github.com/namix-io/hierarchy-engine/pkg/source"
)

// executeTemplate substitutes params into content. Missing parameters render as zero values,
// sprig's required function makes a parameter mandatory.
func executeTemplate(name string, content string, params map[string]interface{}) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(content)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type fileResult struct {
	once sync.Once
	data []byte
	err  error
}

// fileCache reads every manifest source at most once per evaluation
type fileCache struct {
	reader source.Reader
	lock   sync.Mutex
	files  map[manifest.ManifestSource]*fileResult
}

func newFileCache(reader source.Reader) *fileCache {
	return &fileCache{reader: reader, files: map[manifest.ManifestSource]*fileResult{}}
}

func (c *fileCache) read(ctx context.Context, src manifest.ManifestSource) ([]byte, error) {
	c.lock.Lock()
	res, ok := c.files[src]
	if !ok {
		res = &fileResult{}
		c.files[src] = res
	}
	c.lock.Unlock()
	res.once.Do(func() {
		res.data, res.err = c.reader.Read(ctx, src)
	})
	return res.data, res.err
}
