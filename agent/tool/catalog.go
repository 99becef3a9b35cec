package tool

import (
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

const (
	NameSupport = "support"
	NameProduct = "product"
	NameWeight  = "weight"
	NameVague   = "vague"
)

// Infos describes the catalog to a tool-calling model. Every tool takes the
// user query as its only argument.
func Infos(catalog []contractx.Tool) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(catalog))
	for _, t := range catalog {
		if t == nil {
			continue
		}
		infos = append(infos, &schema.ToolInfo{
			Name: t.Name(),
			Desc: t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "The customer's question", Required: true},
			}),
		})
	}
	return infos
}

// Names returns the tool names in catalog order.
func Names(catalog []contractx.Tool) []string {
	names := make([]string, 0, len(catalog))
	for _, t := range catalog {
		if t != nil {
			names = append(names, t.Name())
		}
	}
	return names
}
