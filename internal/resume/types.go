package resume

import "time"

// DefaultTitle 是新建简历在未提供标题时使用的标题。
const DefaultTitle = "Untitled Resume"

// Document 是一份简历的完整结构化数据，编辑期间以值语义传递。
type Document struct {
	ID             string          `json:"id,omitempty"`
	Title          string          `json:"title" validate:"required"`
	Template       Template        `json:"template"`
	Profile        Profile         `json:"profile"`
	Contact        Contact         `json:"contact"`
	Experience     []Experience    `json:"experience" validate:"dive"`
	Education      []Education     `json:"education" validate:"dive"`
	Skills         []Skill         `json:"skills" validate:"dive"`
	Projects       []Project       `json:"projects" validate:"dive"`
	Certifications []Certification `json:"certifications" validate:"dive"`
	Languages      []Language      `json:"languages" validate:"dive"`
	Interests      []string        `json:"interests"`
	Thumbnail      string          `json:"thumbnail,omitempty"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time      `json:"updatedAt,omitempty"`
}

// Template 描述文档选用的模板与配色。
// ColorPalette 依次对应 primary/secondary/accent。
type Template struct {
	ThemeID      string   `json:"themeId"`
	ColorPalette []string `json:"colorPalette" validate:"omitempty,len=3,dive,iscolor"`
}

type Profile struct {
	FullName    string `json:"fullName"`
	Designation string `json:"designation"`
	Summary     string `json:"summary"`
	PhotoURL    string `json:"photoUrl"`
}

type Contact struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	LinkedIn string `json:"linkedIn"`
	GitHub   string `json:"github"`
	Website  string `json:"website"`
}

type Experience struct {
	Company     string `json:"company"`
	Role        string `json:"role"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type Skill struct {
	Name  string `json:"name"`
	Level int    `json:"level" validate:"min=0,max=100"`
}

type Project struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	RepoLink    string `json:"repoLink"`
	DemoLink    string `json:"demoLink"`
}

type Certification struct {
	Title          string `json:"title"`
	Issuer         string `json:"issuer"`
	IssueDate      string `json:"issueDate"`
	CredentialLink string `json:"credentialLink"`
}

type Language struct {
	Name  string `json:"name"`
	Level int    `json:"level" validate:"min=0,max=100"`
}

// New 创建一份空白简历：所有分区为空，模板为 01 及其默认配色。
func New(title string) Document {
	if title == "" {
		title = DefaultTitle
	}
	theme, _ := LookupTheme(DefaultThemeID)
	return Document{
		Title: title,
		Template: Template{
			ThemeID:      theme.ID,
			ColorPalette: theme.DefaultPalette().Slice(),
		},
		Experience:     []Experience{},
		Education:      []Education{},
		Skills:         []Skill{},
		Projects:       []Project{},
		Certifications: []Certification{},
		Languages:      []Language{},
		Interests:      []string{},
	}
}

// Clone 返回深拷贝，新值与原值不共享任何切片底层数组。
func (d Document) Clone() Document {
	out := d
	out.Template.ColorPalette = cloneSlice(d.Template.ColorPalette)
	out.Experience = cloneSlice(d.Experience)
	out.Education = cloneSlice(d.Education)
	out.Skills = cloneSlice(d.Skills)
	out.Projects = cloneSlice(d.Projects)
	out.Certifications = cloneSlice(d.Certifications)
	out.Languages = cloneSlice(d.Languages)
	out.Interests = cloneSlice(d.Interests)
	if d.CreatedAt != nil {
		t := *d.CreatedAt
		out.CreatedAt = &t
	}
	if d.UpdatedAt != nil {
		t := *d.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// Normalize 把缺失的分区补为空切片，并在配色缺失或非法时回填主题默认配色。
// 主题本身未注册时保持原样，由渲染器报告。
func (d Document) Normalize() Document {
	out := d.Clone()
	if out.Title == "" {
		out.Title = DefaultTitle
	}
	if out.Template.ThemeID == "" {
		out.Template.ThemeID = DefaultThemeID
	}
	if theme, ok := LookupTheme(out.Template.ThemeID); ok {
		if _, err := ParsePalette(out.Template.ColorPalette); err != nil {
			out.Template.ColorPalette = theme.DefaultPalette().Slice()
		}
	}
	if out.Experience == nil {
		out.Experience = []Experience{}
	}
	if out.Education == nil {
		out.Education = []Education{}
	}
	if out.Skills == nil {
		out.Skills = []Skill{}
	}
	if out.Projects == nil {
		out.Projects = []Project{}
	}
	if out.Certifications == nil {
		out.Certifications = []Certification{}
	}
	if out.Languages == nil {
		out.Languages = []Language{}
	}
	if out.Interests == nil {
		out.Interests = []string{}
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
