package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// InputElement 页面上一个可输入元素的摘要，用于搜索框选择器
// 全部落空时的诊断日志。
type InputElement struct {
	Tag   string `json:"tag"`
	Type  string `json:"type,omitempty"`
	Name  string `json:"name,omitempty"`
	ID    string `json:"id,omitempty"`
	Class string `json:"class,omitempty"`
}

// InputElements 解析 HTML 并按文档序列出所有 input/textarea 元素。
// 解析失败返回 nil：诊断缺失好过让主流程失败。
func InputElements(htmlText string) []InputElement {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil
	}

	var out []InputElement
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "input" || n.Data == "textarea") {
			el := InputElement{Tag: n.Data}
			for _, attr := range n.Attr {
				switch attr.Key {
				case "type":
					el.Type = attr.Val
				case "name":
					el.Name = attr.Val
				case "id":
					el.ID = attr.Val
				case "class":
					el.Class = attr.Val
				}
			}
			out = append(out, el)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}
