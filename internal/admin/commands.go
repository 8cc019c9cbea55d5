package admin

// Command names accepted by the dispatcher.
const (
	CommandSystemStatus = "system_status"
	CommandChat         = "chat"
	CommandListProjects = "list_projects"
	CommandDispatchTask = "dispatch_task"
	CommandUpdateTask   = "update_task"
	CommandReadFile     = "read_file"
	CommandListFiles    = "list_files"
	CommandSearchCode   = "search_code"
	CommandListIssues   = "list_issues"
	CommandGetPR        = "get_pr"
)

type chatInput struct {
	Message string `json:"message" validate:"required"`
	Model   string `json:"model"`
}

type listInput struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100"`
}

type dispatchInput struct {
	Title  string   `json:"title" validate:"required,max=256"`
	Body   string   `json:"body"`
	File   string   `json:"file"`
	Labels []string `json:"labels"`
}

type updateInput struct {
	Number int      `json:"number" validate:"required,min=1"`
	Title  *string  `json:"title"`
	Body   *string  `json:"body"`
	State  *string  `json:"state" validate:"omitempty,oneof=open closed"`
	Labels []string `json:"labels"`
}

type fileInput struct {
	Path string `json:"path"`
	Ref  string `json:"ref"`
}

type searchInput struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

type issuesInput struct {
	State string `json:"state" validate:"omitempty,oneof=open closed all"`
	Label string `json:"label"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

type prInput struct {
	Number int `json:"number" validate:"required,min=1"`
}
