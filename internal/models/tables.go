package models

// TableName overrides keep feedback tables under one prefix.
func (Feedback) TableName() string       { return "feedbacks" }
func (SiteCourseMap) TableName() string  { return "feedback_sitecourse_map" }
func (Item) TableName() string           { return "feedback_items" }
func (GradedQuestion) TableName() string { return "feedback_graded_questions" }
func (Template) TableName() string       { return "feedback_templates" }
func (ItemFile) TableName() string       { return "feedback_item_files" }
func (Completed) TableName() string      { return "feedback_completed" }
func (CompletedTmp) TableName() string   { return "feedback_completedtmp" }
func (Value) TableName() string          { return "feedback_values" }
func (ValueTmp) TableName() string       { return "feedback_valuetmp" }
func (EventLog) TableName() string       { return "feedback_event_logs" }
