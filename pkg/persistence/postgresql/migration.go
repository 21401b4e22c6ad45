package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow instances: the only mutable state in the engine.
			CREATE TABLE workflow_instances (
				id UUID PRIMARY KEY,
				subject_id VARCHAR(255) NOT NULL,
				template_id VARCHAR(255) NOT NULL,
				current_phase INT NOT NULL DEFAULT 1,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'paused', 'completed', 'cancelled')),
				phase_data JSONB DEFAULT '{}',
				metadata JSONB DEFAULT '{}',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				version INT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_workflow_instances_status ON workflow_instances(status);
			CREATE INDEX idx_workflow_instances_subject ON workflow_instances(subject_id);
			CREATE INDEX idx_workflow_instances_template ON workflow_instances(template_id);
		`,
		2: `
			-- Escalation wake-ups: persisted timers for phase timeouts.
			CREATE TABLE escalation_wakeups (
				instance_id UUID NOT NULL REFERENCES workflow_instances(id) ON DELETE CASCADE,
				phase_id INT NOT NULL,
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (instance_id, phase_id)
			);

			CREATE INDEX idx_escalation_wakeups_due_at ON escalation_wakeups(due_at);
		`,
	}
}
