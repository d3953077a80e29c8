package scene

// Subject describes an interrogation suspect and the scene they anchor.
type Subject struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Title        string  `json:"title"`
	Background   string  `json:"background,omitempty"` // 档案描述，仅供展示
	ScriptID     string  `json:"scriptId"`
	SceneFile    string  `json:"-"`            // 可选的场景 INI 文件
	BaseAnomaly  float64 `json:"baseAnomaly"`  // 审讯开始时检测条的默认位置 (0-100)
	AnomalyDrift float64 `json:"anomalyDrift"` // 基础偏移 (-10 到 10)
	IsAndroid    bool    `json:"-"`            // 谜题答案，不下发给客户端
}

// Anchor returns the idle meter baseline for this subject.
func (s Subject) Anchor() float64 {
	drift := s.AnomalyDrift
	if drift < -10 {
		drift = -10
	}
	if drift > 10 {
		drift = 10
	}
	v := s.BaseAnomaly + drift
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Seed provides the default suspects shipped with the backend.
func Seed() []Subject {
	return []Subject{
		{
			ID:           "night-guard",
			Name:         "陈默",
			Title:        "仓库夜班保安",
			Background:   "案发当晚唯一在岗的保安，监控记录在凌晨两点出现了十七分钟的空白。",
			ScriptID:     "night-guard",
			BaseAnomaly:  20,
			AnomalyDrift: 0,
			IsAndroid:    false,
		},
		{
			ID:           "courier",
			Name:         "林晚",
			Title:        "同城快递员",
			Background:   "自称只是送错了包裹，但她对仓库的门禁系统了如指掌。",
			ScriptID:     "courier",
			BaseAnomaly:  35,
			AnomalyDrift: 5,
			IsAndroid:    true,
		},
	}
}
