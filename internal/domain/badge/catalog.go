package badge

// CatalogVersion увеличивается при каждом изменении каталога.
// Хранилища записывают версию, с которой бейджи были засеяны.
const CatalogVersion = 1

// catalog - фиксированный каталог бейджей.
var catalog = []Badge{
	{
		ID:            "b1",
		Name:          "First Step",
		Description:   "You defined your first skill!",
		IconName:      IconLightbulb,
		CriteriaType:  CriteriaSkillCount,
		CriteriaValue: 1,
	},
	{
		ID:            "b2",
		Name:          "Hour of Power",
		Description:   "Logged 1 hour of practice in total.",
		IconName:      IconStar,
		CriteriaType:  CriteriaTotalPracticeTime,
		CriteriaValue: 60,
	},
	{
		ID:            "b3",
		Name:          "Dedicated Learner",
		Description:   "Logged 5 hours of practice in total.",
		IconName:      IconTarget,
		CriteriaType:  CriteriaTotalPracticeTime,
		CriteriaValue: 300,
	},
	{
		ID:            "b4",
		Name:          "TypeScript Novice",
		Description:   "Logged 1 hour in TypeScript Programming.",
		IconName:      IconZap,
		CriteriaType:  CriteriaSkillSpecificPracticeTime,
		CriteriaValue: 60,
		SkillID:       "1",
	},
	{
		ID:            "b5",
		Name:          "Consistent Practice",
		Description:   "Logged practice on 3 different days.",
		IconName:      IconCalendarDays,
		CriteriaType:  CriteriaLogFrequency,
		CriteriaValue: 3,
	},
	{
		ID:            "b6",
		Name:          "Skill Streaker",
		Description:   "Logged practice 5 times for a single skill.",
		IconName:      IconTrendingUp,
		CriteriaType:  CriteriaLogFrequency,
		CriteriaValue: 5,
		SkillID:       "1",
	},
}

// Catalog возвращает новый набор бейджей каталога с пустым AchievedAt.
// Вызывающий может свободно изменять результат.
func Catalog() []Badge {
	out := make([]Badge, len(catalog))
	for i, b := range catalog {
		b.AchievedAt = nil
		out[i] = b
	}
	return out
}

// CatalogByID возвращает определение бейджа из каталога.
func CatalogByID(id string) (Badge, bool) {
	for _, b := range catalog {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// MissingFrom возвращает бейджи каталога, которых нет в existing.
func MissingFrom(existing []Badge) []Badge {
	have := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		have[b.ID] = struct{}{}
	}

	var missing []Badge
	for _, b := range Catalog() {
		if _, ok := have[b.ID]; !ok {
			missing = append(missing, b)
		}
	}
	return missing
}
