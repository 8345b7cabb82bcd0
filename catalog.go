package coglib

import (
	"fmt"
	"strings"
)

// 土壤养分变量。Scale为原始像素值到显示单位的换算系数
type Variable struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Scale float64 `json:"scale"`
}

var Variables = []Variable{
	{Code: "bdod", Name: "Bulk density", Unit: "kg/dm3", Scale: 0.01},
	{Code: "cec", Name: "Cation exchange capacity", Unit: "cmol(c)/kg", Scale: 0.1},
	{Code: "clay", Name: "Clay content", Unit: "%", Scale: 0.1},
	{Code: "nitrogen", Name: "Total nitrogen", Unit: "g/kg", Scale: 0.01},
	{Code: "ocd", Name: "Organic carbon density", Unit: "kg/m3", Scale: 0.1},
	{Code: "phh2o", Name: "Soil pH in H2O", Unit: "pH", Scale: 0.1},
	{Code: "sand", Name: "Sand content", Unit: "%", Scale: 0.1},
	{Code: "silt", Name: "Silt content", Unit: "%", Scale: 0.1},
	{Code: "soc", Name: "Soil organic carbon", Unit: "g/kg", Scale: 0.1},
}

var Depths = []string{"0-5cm", "5-15cm", "15-30cm", "30-60cm", "60-100cm", "100-200cm"}

func LookupVariable(code string) (v Variable, err error) {
	for _, c := range Variables {
		if c.Code == code {
			return c, nil
		}
	}
	err = ErrUnknownVar
	return
}

func CheckDepth(depth string) error {
	for _, d := range Depths {
		if d == depth {
			return nil
		}
	}
	return ErrUnknownDepth
}

// 按变量与深度拼接COG文件地址
func CogURL(base, varCode, depth string) string {
	return strings.TrimRight(base, "/") + "/" + fmt.Sprintf(COG_NAME_TEMPLATE, varCode, depth)
}
