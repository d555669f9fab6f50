package editor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"resumeCraft/internal/resume"
)

// Op 是一次编辑操作，只有本包定义的五种实现。
type Op interface {
	Name() string
	apply(resume.Document) (resume.Document, error)
}

// SetFieldOp 按路径修改一个叶子字段。
type SetFieldOp struct {
	Path  string
	Value any
}

// AppendItemOp 在分区末尾追加一项，Item 为 nil 时追加零值。
type AppendItemOp struct {
	Section resume.Section
	Item    any
}

type RemoveItemOp struct {
	Section resume.Section
	Index   int
}

// SetTemplateOp 切换主题，Colors 为空时使用主题默认调色板。
type SetTemplateOp struct {
	ThemeID string
	Colors  []string
}

type SetColorPaletteOp struct {
	Colors []string
}

func (SetFieldOp) Name() string        { return "setField" }
func (AppendItemOp) Name() string      { return "appendItem" }
func (RemoveItemOp) Name() string      { return "removeItem" }
func (SetTemplateOp) Name() string     { return "setTemplate" }
func (SetColorPaletteOp) Name() string { return "setColorPalette" }

func (o SetFieldOp) apply(d resume.Document) (resume.Document, error) {
	return SetField(d, o.Path, o.Value)
}

func (o AppendItemOp) apply(d resume.Document) (resume.Document, error) {
	return AppendItem(d, o.Section, o.Item)
}

func (o RemoveItemOp) apply(d resume.Document) (resume.Document, error) {
	return RemoveItem(d, o.Section, o.Index)
}

func (o SetTemplateOp) apply(d resume.Document) (resume.Document, error) {
	return SetTemplate(d, o.ThemeID, o.Colors)
}

func (o SetColorPaletteOp) apply(d resume.Document) (resume.Document, error) {
	return SetColorPalette(d, o.Colors)
}

// Apply 依次执行 ops。任一操作失败时返回原始文档，整批不生效。
func Apply(doc resume.Document, ops ...Op) (resume.Document, error) {
	cur := doc
	for i, op := range ops {
		if op == nil {
			return doc, fmt.Errorf("%w: op %d is nil", resume.ErrInvalidValue, i)
		}
		next, err := op.apply(cur)
		if err != nil {
			return doc, fmt.Errorf("op %d (%s): %w", i, op.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// wireOp 是编辑请求中单个操作的 JSON 形式，以 "op" 区分类型。
type wireOp struct {
	Op      string          `json:"op"`
	Path    string          `json:"path"`
	Value   json.RawMessage `json:"value"`
	Section string          `json:"section"`
	Item    json.RawMessage `json:"item"`
	Index   *int            `json:"index"`
	ThemeID string          `json:"themeId"`
	Colors  []string        `json:"colors"`
}

// DecodeOps 解析 JSON 数组形式的批量编辑。
func DecodeOps(raw []byte) ([]Op, error) {
	var wire []wireOp
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode ops: %v", resume.ErrInvalidValue, err)
	}
	ops := make([]Op, 0, len(wire))
	for i, w := range wire {
		op, err := w.decode()
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (w wireOp) decode() (Op, error) {
	switch w.Op {
	case "setField":
		v, err := decodeScalar(w.Value)
		if err != nil {
			return nil, err
		}
		return SetFieldOp{Path: w.Path, Value: v}, nil
	case "appendItem":
		section, err := resume.ParseSection(w.Section)
		if err != nil {
			return nil, err
		}
		item, err := DecodeItem(section, w.Item)
		if err != nil {
			return nil, err
		}
		return AppendItemOp{Section: section, Item: item}, nil
	case "removeItem":
		section, err := resume.ParseSection(w.Section)
		if err != nil {
			return nil, err
		}
		if w.Index == nil {
			return nil, fmt.Errorf("%w: removeItem needs an index", resume.ErrInvalidValue)
		}
		return RemoveItemOp{Section: section, Index: *w.Index}, nil
	case "setTemplate":
		return SetTemplateOp{ThemeID: w.ThemeID, Colors: w.Colors}, nil
	case "setColorPalette":
		return SetColorPaletteOp{Colors: w.Colors}, nil
	}
	return nil, fmt.Errorf("%w: unknown op %q", resume.ErrInvalidValue, w.Op)
}

// decodeScalar 保留数字的原始文本，交给 leaf 按字段类型判断。
func decodeScalar(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: setField needs a value", resume.ErrInvalidValue)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", resume.ErrInvalidValue, err)
	}
	return v, nil
}
