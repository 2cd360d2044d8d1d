package domain

// Flow — именованная цепочка сервисов.
//
// Сервисы выполняются строго по порядку: stdout сервиса i
// становится stdin сервиса i+1.
type Flow struct {
	// Name — уникальное имя flow (ключ в "flows" программного конфига).
	Name string `json:"name"`

	// Services — имена сервисов в порядке выполнения.
	// Существование сервисов проверяется только при запуске flow.
	Services []string `json:"services"`
}

// Configuration — текущее состояние конфигурации: сервисы и flows.
//
// Владелец — store.Store. Каждый цикл оркестратора берёт Snapshot()
// и передаёт его executor'у, поэтому reload не может изменить
// конфигурацию посреди выполнения flow.
type Configuration struct {
	// Services — загруженные и прошедшие проверку сервисы (name → Service).
	Services map[string]*Service `json:"services"`

	// Flows — flows в порядке объявления в конфиге.
	Flows []Flow `json:"flows"`
}

// NewConfiguration создаёт пустую конфигурацию.
func NewConfiguration() *Configuration {
	return &Configuration{
		Services: make(map[string]*Service),
	}
}

// Service возвращает сервис по имени.
func (c *Configuration) Service(name string) (*Service, bool) {
	svc, ok := c.Services[name]
	return svc, ok
}

// Flow возвращает flow по имени.
func (c *Configuration) Flow(name string) (*Flow, bool) {
	for i := range c.Flows {
		if c.Flows[i].Name == name {
			return &c.Flows[i], true
		}
	}
	return nil, false
}

// FlowNames возвращает имена flows в порядке объявления.
func (c *Configuration) FlowNames() []string {
	names := make([]string, len(c.Flows))
	for i, f := range c.Flows {
		names[i] = f.Name
	}
	return names
}

// Snapshot возвращает независимую копию конфигурации.
// Сами *Service разделяются: они неизменяемы после загрузки.
func (c *Configuration) Snapshot() *Configuration {
	snap := &Configuration{
		Services: make(map[string]*Service, len(c.Services)),
		Flows:    make([]Flow, len(c.Flows)),
	}
	for name, svc := range c.Services {
		snap.Services[name] = svc
	}
	for i, f := range c.Flows {
		snap.Flows[i] = Flow{
			Name:     f.Name,
			Services: append([]string(nil), f.Services...),
		}
	}
	return snap
}
