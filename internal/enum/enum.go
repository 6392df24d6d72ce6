package enum

// Values below are stored as-is in the database; the pt-BR spellings come
// from the legacy schema and must not be translated without a migration.

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	ItemStatusPending  = "pendente"
	ItemStatusApproved = "aprovado"
	ItemStatusRefused  = "recusado"
)

const (
	OrderStatusReceived   = "recebido"
	OrderStatusDiagnosing = "em_diagnostico"
	OrderStatusBudgeting  = "aguardando_aprovacao"
	OrderStatusInService  = "em_servico"
	OrderStatusReady      = "pronto"
	OrderStatusDelivered  = "entregue"
)

// ── Group B: Classification labels (CHECK constrained in DB) ──

const (
	ItemTypePart  = "peca"
	ItemTypeLabor = "mao_de_obra"
)

const (
	PriorityGreen  = "verde"    // preventive
	PriorityYellow = "amarelo"  // needs attention
	PriorityRed    = "vermelho" // urgent
)

const (
	BudgetTierPremium  = "premium"
	BudgetTierStandard = "standard"
	BudgetTierEco      = "eco"
)

// ── Group C: Access control ──

const (
	UserRoleAdmin     = "ADMIN"
	UserRoleAttendant = "ATENDENTE"
	UserRoleMechanic  = "MECANICO"
	UserRoleClient    = "CLIENTE"
)

// Fallback defaults applied when legacy rows carry empty or unknown values.
const (
	DefaultItemStatus = ItemStatusPending
	DefaultPriority   = PriorityYellow
	DefaultBudgetTier = BudgetTierStandard
)
