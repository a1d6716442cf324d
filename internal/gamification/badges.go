package gamification

type BadgeDefinition struct {
	Name        string
	Description string
	Icon        string
	Rarity      string
}

// Badge rarities
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

var badges = []BadgeDefinition{
	{Name: BadgeFirstStep, Description: "Alcanzaste el nivel Estudiante", Icon: "footprints", Rarity: RarityCommon},
	{Name: BadgeDedicatedStudent, Description: "Alcanzaste el nivel Avanzado", Icon: "book-open", Rarity: RarityRare},
	{Name: BadgeKnowledgeMaster, Description: "Alcanzaste el nivel Maestro", Icon: "graduation-cap", Rarity: RarityEpic},
	{Name: BadgeCrolarsLegend, Description: "Alcanzaste el nivel máximo", Icon: "crown", Rarity: RarityLegendary},
	{Name: BadgeFirstCourse, Description: "Completaste tu primer curso", Icon: "award", Rarity: RarityCommon},
	{Name: BadgeHelpingHand, Description: "Ayudaste a 10 compañeros en el foro", Icon: "hand-heart", Rarity: RarityRare},
	{Name: BadgeOnFire, Description: "Racha de 7 días", Icon: "flame", Rarity: RarityCommon},
	{Name: BadgeUnstoppable, Description: "Racha de 30 días", Icon: "zap", Rarity: RarityEpic},
	{Name: BadgeSocial, Description: "20 amigos en la plataforma", Icon: "users", Rarity: RarityRare},
	{Name: BadgeStudyMarathon, Description: "600 minutos de estudio", Icon: "timer", Rarity: RarityRare},
}

// Badges returns every badge the level table and achievements can grant
func Badges() []BadgeDefinition {
	out := make([]BadgeDefinition, len(badges))
	copy(out, badges)
	return out
}
