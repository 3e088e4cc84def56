package rendering

import "strings"

// Language selects the section titles of the assembled document.
type Language int

const (
	LangEnglish Language = iota
	LangPortuguese
)

// ParseLanguage maps a language code to a supported output language.
// Unknown codes fall back to English.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pt", "pt-br", "portuguese":
		return LangPortuguese
	case "en", "en-us", "english":
		return LangEnglish
	default:
		return LangEnglish
	}
}

func (l Language) String() string {
	if l == LangPortuguese {
		return "pt"
	}
	return "en"
}

// SectionTitles holds the localized section headers.
type SectionTitles struct {
	Education  string
	Skills     string
	Experience string
	Projects   string
}

func titlesFor(lang Language) SectionTitles {
	if lang == LangPortuguese {
		return SectionTitles{
			Education:  "Educação",
			Skills:     "Habilidades Técnicas",
			Experience: "Experiência Profissional",
			Projects:   "Projetos e Performance",
		}
	}
	return SectionTitles{
		Education:  "Education",
		Skills:     "Technical Skills",
		Experience: "Professional Experience",
		Projects:   "Key Projects",
	}
}
