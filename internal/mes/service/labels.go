package service

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"golang.org/x/text/language"
)

// 第一个为默认语言
var supportedLangs = []language.Tag{
	language.English,
	language.Chinese,
	language.Turkish,
}

var langMatcher = language.NewMatcher(supportedLangs)

var processLabels = map[string]map[string]string{
	"en": {
		entity.ProcessStart:  "Started",
		entity.ProcessStop:   "Paused",
		entity.ProcessResume: "Resumed",
		entity.ProcessFinish: "Finished",
	},
	"zh": {
		entity.ProcessStart:  "开始",
		entity.ProcessStop:   "暂停",
		entity.ProcessResume: "继续",
		entity.ProcessFinish: "结束",
	},
	"tr": {
		entity.ProcessStart:  "Başladı",
		entity.ProcessStop:   "Durdu",
		entity.ProcessResume: "Devam Ediyor",
		entity.ProcessFinish: "Bitti",
	},
}

// ResolveLang 按 Accept-Language 选取支持的语言
func ResolveLang(acceptLanguage string) string {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	tag, _, _ := langMatcher.Match(tags...)
	base, _ := tag.Base()
	if _, ok := processLabels[base.String()]; ok {
		return base.String()
	}
	return "en"
}

// ProcessLabel 作业动作的本地化名称
func ProcessLabel(lang, processType string) string {
	labels, ok := processLabels[lang]
	if !ok {
		labels = processLabels["en"]
	}
	if label, ok := labels[processType]; ok {
		return label
	}
	return processType
}
