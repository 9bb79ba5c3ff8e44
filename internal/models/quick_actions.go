package models

// QuickAction is a suggested prompt shown next to the chat.
type QuickAction struct {
	ID          int    `json:"id"`
	Label       string `json:"label"`
	Query       string `json:"query"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
}

var studentQuickActions = []QuickAction{
	{ID: 1, Label: "Pagos y Beneficios", Query: "¿Cuáles son los pagos y beneficios disponibles para estudiantes?", Emoji: "💳", Description: "Información sobre aranceles y ayudas"},
	{ID: 2, Label: "Clases y Horarios", Query: "¿Dónde puedo consultar mi horario de clases?", Emoji: "⏰", Description: "Accede a tu calendario académico"},
	{ID: 3, Label: "Plataforma Virtual", Query: "¿Cómo accedo a la plataforma virtual de la UBE?", Emoji: "💻", Description: "Acceso a Moodle y aulas virtuales"},
	{ID: 4, Label: "Certificados y Trámites", Query: "¿Cómo solicito certificados y realizar trámites administrativos?", Emoji: "📋", Description: "Gestiona tus documentos"},
	{ID: 5, Label: "Vida Universitaria", Query: "¿Qué actividades y apoyo estudiantil ofrece la UBE?", Emoji: "🎉", Description: "Eventos y programas de apoyo"},
	{ID: 6, Label: "Graduación", Query: "¿Cuál es el proceso y requisitos para graduarme?", Emoji: "🎓", Description: "Información de egreso"},
}

var generalQuickActions = []QuickAction{
	{ID: 1, Label: "Información General", Query: "¿Cuál es la información general sobre la UBE?", Emoji: "ℹ️", Description: "Conoce nuestra institución"},
	{ID: 2, Label: "Carreras de Grado", Query: "¿Qué carreras de grado ofrece la UBE?", Emoji: "🎓", Description: "Explora nuestras licenciaturas"},
	{ID: 3, Label: "Carreras de Postgrado", Query: "¿Qué carreras de postgrado ofrecen?", Emoji: "🎯", Description: "Maestrías y especializaciones"},
	{ID: 4, Label: "Beneficios y Ayudas", Query: "¿Cuáles son los beneficios y ayudas estudiantiles?", Emoji: "💎", Description: "Becas y apoyos disponibles"},
	{ID: 5, Label: "Requisitos de Admisión", Query: "¿Cuáles son los requisitos para ingresar a la UBE?", Emoji: "📝", Description: "Proceso de admisión"},
	{ID: 6, Label: "Contacto y Ubicación", Query: "¿Cuál es el teléfono, email y ubicación de la UBE?", Emoji: "📍", Description: "Información de contacto"},
}

// QuickActionsFor returns the catalog for a provider: university students
// (local) get the student list, OAuth users get the general list. The
// returned slice is a copy and may be modified by the caller.
func QuickActionsFor(provider Provider) []QuickAction {
	src := generalQuickActions
	if provider == ProviderLocal {
		src = studentQuickActions
	}
	out := make([]QuickAction, len(src))
	copy(out, src)
	return out
}
